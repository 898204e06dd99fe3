// Package logging wires slog for the daemon and CLI.
//
// It builds text or JSON handlers from configuration, duplicates daemon output
// into the log directory, and standardizes attribute keys (account, stage,
// session_id, correlation_id) so log lines from the pool, workers, and
// orchestrator correlate cleanly. Context helpers carry the account/stage/
// request-id triple across goroutine boundaries.
package logging
