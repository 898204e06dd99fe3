package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockPath     string         `json:"lock_path"`
	Workers      int            `json:"workers"`
	PoolCapacity int            `json:"pool_capacity"`
	PoolInUse    int            `json:"pool_in_use"`
	PoolIdle     int            `json:"pool_idle"`
	QueueDepth   int            `json:"queue_depth"`
	InFlight     []FlightRecord `json:"in_flight"`
	AccountStats StatsResponse  `json:"account_stats"`
}

// FlightRecord describes one scheduled or running work item.
type FlightRecord struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Stage      string    `json:"stage"`
	Mode       string    `json:"mode"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// SubmitRequest schedules pipeline work for one account.
type SubmitRequest struct {
	Email string `json:"email"`
	Mode  string `json:"mode"`
	Force bool   `json:"force"`
}

// SubmitResponse reports the stage the run begins at.
type SubmitResponse struct {
	Stage string `json:"stage"`
}

// SubmitAllRequest schedules every runnable account.
type SubmitAllRequest struct {
	Mode string `json:"mode"`
}

// SubmitAllResponse reports batch submission counts.
type SubmitAllResponse struct {
	Submitted int `json:"submitted"`
	Skipped   int `json:"skipped"`
}

// CancelRequest withdraws or aborts an account's in-flight work.
type CancelRequest struct {
	Email string `json:"email"`
}

// CancelResponse acknowledges a cancellation.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// AccountRecord mirrors a stored account for IPC callers.
type AccountRecord struct {
	Email         string    `json:"email"`
	Password      string    `json:"password,omitempty"`
	RecoveryEmail string    `json:"recovery_email,omitempty"`
	SecretKey     string    `json:"secret_key,omitempty"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	BrowserID     string    `json:"browser_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AccountListRequest filters and pages account listing.
type AccountListRequest struct {
	Status   string `json:"status"`
	Search   string `json:"search"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// AccountListResponse contains matching accounts and the unpaged total.
type AccountListResponse struct {
	Accounts []AccountRecord `json:"accounts"`
	Total    int             `json:"total"`
}

// AccountShowRequest fetches a single account by email.
type AccountShowRequest struct {
	Email string `json:"email"`
}

// AccountShowResponse contains a single account.
type AccountShowResponse struct {
	Account AccountRecord `json:"account"`
}

// AccountAddRequest inserts or updates account credentials.
type AccountAddRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	RecoveryEmail string `json:"recovery_email"`
	SecretKey     string `json:"secret_key"`
}

// AccountAddResponse returns the stored record.
type AccountAddResponse struct {
	Account AccountRecord `json:"account"`
}

// AccountRemoveRequest deletes an account record.
type AccountRemoveRequest struct {
	Email string `json:"email"`
}

// AccountRemoveResponse acknowledges a removal.
type AccountRemoveResponse struct {
	Removed bool `json:"removed"`
}

// ImportRequest ingests bulk credential text.
type ImportRequest struct {
	Content   string `json:"content"`
	Separator string `json:"separator"`
}

// ImportResponse reports import results.
type ImportResponse struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// ExportRequest renders accounts as bulk credential text.
type ExportRequest struct {
	Status string `json:"status"`
}

// ExportResponse carries the rendered text.
type ExportResponse struct {
	Content string `json:"content"`
	Count   int    `json:"count"`
}

// StatsRequest fetches aggregated account counts.
type StatsRequest struct{}

// StatsResponse carries aggregated account counts.
type StatsResponse struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	WithBrowser int            `json:"with_browser"`
}

// EventsRequest polls progress events after a sequence cursor.
type EventsRequest struct {
	Since uint64 `json:"since"`
	Limit int    `json:"limit"`
	Wait  bool   `json:"wait"`
}

// EventRecord mirrors one progress event for IPC callers.
type EventRecord struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Email     string    `json:"email"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
}

// EventsResponse contains buffered events and the next cursor.
type EventsResponse struct {
	Events []EventRecord `json:"events"`
	Next   uint64        `json:"next"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse acknowledges the test send.
type TestNotificationResponse struct {
	Sent bool `json:"sent"`
}
