package browser_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gantry/internal/browser"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *browser.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return browser.NewWithDoer(srv.URL, srv.Client())
}

func TestOpenWindow(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browser/open" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["id"] != "win-1" {
			t.Errorf("id = %q", req["id"])
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"ws":"ws://127.0.0.1:9222/devtools","http":"127.0.0.1:9222"}}`))
	})

	info, err := client.OpenWindow(context.Background(), "win-1")
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}
	if info.Endpoint != "ws://127.0.0.1:9222/devtools" {
		t.Fatalf("Endpoint = %q", info.Endpoint)
	}
	if !info.Open {
		t.Fatal("window not marked open")
	}
}

func TestOpenWindowBackendFailure(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"msg":"window busy"}`))
	})

	if _, err := client.OpenWindow(context.Background(), "win-1"); err == nil {
		t.Fatal("expected error from failed open")
	}
}

func TestCreateWindow(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browser/update" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["remark"] != "a@x.com" {
			t.Errorf("remark = %v", req["remark"])
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"win-9"}}`))
	})

	id, err := client.CreateWindow(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if id != "win-9" {
		t.Fatalf("id = %q", id)
	}
}

func TestListWindows(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"list":[
            {"id":"w1","remark":"a@x.com","status":1},
            {"id":"w2","remark":"b@x.com","status":0}]}}`))
	})

	windows, err := client.ListWindows(context.Background())
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("len = %d", len(windows))
	}
	if !windows[0].Open || windows[1].Open {
		t.Fatalf("open flags wrong: %+v", windows)
	}
	if windows[1].Email != "b@x.com" {
		t.Fatalf("email = %q", windows[1].Email)
	}
}

func TestAlive(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browser/pids" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"w1":4242}}`))
	})

	if !client.Alive(context.Background(), "w1") {
		t.Fatal("expected w1 alive")
	}
	if client.Alive(context.Background(), "w2") {
		t.Fatal("expected w2 dead")
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if err := client.CloseWindow(context.Background(), "w1"); err == nil {
		t.Fatal("expected error from 500 response")
	}
}
