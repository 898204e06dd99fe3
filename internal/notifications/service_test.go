package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gantry/internal/config"
	"gantry/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyPipelineCompleted(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "pipeline completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyPipelineCompleted(context.Background(), "a@x.com")
			},
			expectTitle:    "Gantry - Account Complete",
			expectMessage:  "Subscription active: a@x.com",
			expectTags:     "gantry,pipeline,completed",
			expectPriority: "high",
		},
		{
			name: "account failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyAccountFailed(context.Background(), "a@x.com", "card_binding", "card declined")
			},
			expectTitle:    "Gantry - Account Failed",
			expectMessage:  "Failed at card_binding: a@x.com\ncard declined",
			expectTags:     "gantry,account,failed",
			expectPriority: "high",
		},
		{
			name: "account ineligible",
			send: func(svc notifications.Service) error {
				return svc.NotifyAccountIneligible(context.Background(), "a@x.com", "region locked")
			},
			expectTitle:   "Gantry - Account Ineligible",
			expectMessage: "Not eligible: a@x.com\nregion locked",
			expectTags:    "gantry,account,ineligible",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("socket closed"), "backend")
			},
			expectTitle:    "Gantry - Error",
			expectMessage:  "Error with backend: socket closed",
			expectTags:     "gantry,error,alert",
			expectPriority: "high",
		},
		{
			name: "batch completed with failures",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), 7, 2, 0)
			},
			expectTitle:   "Gantry - Batch Complete (with errors)",
			expectMessage: "Batch complete: 7 succeeded, 2 failed in 0s",
			expectTags:    "gantry,batch,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsSuppression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.PipelineDone = false
	cfg.Notifications.Errors = false
	cfg.Notifications.Batch = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyPipelineCompleted(ctx, "a@x.com"); err != nil {
		t.Fatalf("suppressed pipeline notify: %v", err)
	}
	if err := svc.NotifyAccountFailed(ctx, "a@x.com", "setup_2fa", "boom"); err != nil {
		t.Fatalf("suppressed failure notify: %v", err)
	}
	if err := svc.NotifyBatchCompleted(ctx, 1, 0, 0); err != nil {
		t.Fatalf("suppressed batch notify: %v", err)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
