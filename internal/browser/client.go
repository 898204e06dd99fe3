package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gantry/internal/config"
)

// HTTPDoer describes the HTTP client used by the backend client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WindowInfo describes one browser window known to the backend.
type WindowInfo struct {
	ID       string
	Email    string
	Endpoint string
	Open     bool
}

// Client talks to the local browser window-manager API.
type Client struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
}

// New constructs a backend client from configuration. The backend listens on
// loopback, so the transport ignores any system proxy settings: requests to
// it must never be routed through an HTTP proxy.
func New(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.Browser.RequestTimeoutSeconds) * time.Second
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Browser.APIURL), "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: nil},
		},
	}
}

// NewWithDoer constructs a backend client with an injected HTTP client.
func NewWithDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  doer,
		timeout: 30 * time.Second,
	}
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if !env.Success {
		msg := env.Msg
		if msg == "" {
			msg = "backend reported failure"
		}
		return fmt.Errorf("%s: %s", path, msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return nil
}

// CreateWindow registers a new browser window tagged with the account email
// and returns its backend ID. The window is created closed.
func (c *Client) CreateWindow(ctx context.Context, email string) (string, error) {
	var data struct {
		ID string `json:"id"`
	}
	payload := map[string]any{
		"remark":    email,
		"proxyType": "noproxy",
	}
	if err := c.post(ctx, "/browser/update", payload, &data); err != nil {
		return "", err
	}
	if data.ID == "" {
		return "", fmt.Errorf("/browser/update: backend returned no window id")
	}
	return data.ID, nil
}

// OpenWindow launches a browser window and returns its CDP websocket endpoint.
func (c *Client) OpenWindow(ctx context.Context, id string) (WindowInfo, error) {
	var data struct {
		WS   string `json:"ws"`
		HTTP string `json:"http"`
	}
	if err := c.post(ctx, "/browser/open", map[string]string{"id": id}, &data); err != nil {
		return WindowInfo{}, err
	}
	if data.WS == "" {
		return WindowInfo{}, fmt.Errorf("/browser/open: backend returned no ws endpoint")
	}
	return WindowInfo{ID: id, Endpoint: data.WS, Open: true}, nil
}

// CloseWindow shuts a running window down but keeps its profile.
func (c *Client) CloseWindow(ctx context.Context, id string) error {
	return c.post(ctx, "/browser/close", map[string]string{"id": id}, nil)
}

// DeleteWindow removes a window and its profile from the backend.
func (c *Client) DeleteWindow(ctx context.Context, id string) error {
	return c.post(ctx, "/browser/delete", map[string]string{"id": id}, nil)
}

// ListWindows returns the windows the backend knows about.
func (c *Client) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	var data struct {
		List []struct {
			ID     string `json:"id"`
			Remark string `json:"remark"`
			Status int    `json:"status"`
		} `json:"list"`
	}
	payload := map[string]int{"page": 0, "pageSize": 200}
	if err := c.post(ctx, "/browser/list", payload, &data); err != nil {
		return nil, err
	}
	windows := make([]WindowInfo, 0, len(data.List))
	for _, entry := range data.List {
		windows = append(windows, WindowInfo{
			ID:    entry.ID,
			Email: entry.Remark,
			Open:  entry.Status == 1,
		})
	}
	return windows, nil
}

// Alive probes whether a window's browser process is still running.
func (c *Client) Alive(ctx context.Context, id string) bool {
	var pids map[string]int
	if err := c.post(ctx, "/browser/pids", map[string][]string{"ids": {id}}, &pids); err != nil {
		return false
	}
	pid, ok := pids[id]
	return ok && pid > 0
}
