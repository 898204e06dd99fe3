package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gantry/internal/account"
	"gantry/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates no account exists for the requested email.
var ErrNotFound = errors.New("account not found")

// Store manages account persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the account database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

const accountColumns = "email, password, recovery_email, secret_key, status, message, browser_id, created_at, updated_at"

func scanAccount(row interface{ Scan(...any) error }) (*account.Account, error) {
	var (
		acct      account.Account
		status    string
		browserID sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&acct.Email,
		&acct.Password,
		&acct.RecoveryEmail,
		&acct.SecretKey,
		&status,
		&acct.Message,
		&browserID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	parsed, ok := account.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q for %s", status, acct.Email)
	}
	acct.Status = parsed
	acct.BrowserID = browserID.String
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		acct.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		acct.UpdatedAt = ts
	}
	return &acct, nil
}

// Get fetches one account by email.
func (s *Store) Get(ctx context.Context, email string) (*account.Account, error) {
	email = account.NormalizeEmail(email)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = ?", email)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// Upsert inserts or updates an account record. A re-imported email overwrites
// the stored credentials and resets nothing else; a brand-new email starts at
// pending.
func (s *Store) Upsert(ctx context.Context, acct account.Account) (*account.Account, error) {
	email := account.NormalizeEmail(acct.Email)
	if email == "" {
		return nil, errors.New("email required")
	}
	status := acct.Status
	if status == "" {
		status = account.StatusPending
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.execWithRetry(ctx, `
        INSERT INTO accounts (email, password, recovery_email, secret_key, status, message, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(email) DO UPDATE SET
            password = excluded.password,
            recovery_email = excluded.recovery_email,
            secret_key = excluded.secret_key,
            updated_at = excluded.updated_at`,
		email, acct.Password, acct.RecoveryEmail, acct.SecretKey, string(status), acct.Message, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return s.Get(ctx, email)
}

// ApplyTransition persists a status change with its outcome message in one
// atomic write keyed by email.
func (s *Store) ApplyTransition(ctx context.Context, email string, status account.Status, message string) error {
	email = account.NormalizeEmail(email)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		"UPDATE accounts SET status = ?, message = ?, updated_at = ? WHERE email = ?",
		string(status), message, now, email,
	)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply transition rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return nil
}

// AssignBrowser records the browser session currently bound to an account.
func (s *Store) AssignBrowser(ctx context.Context, email, sessionID string) error {
	email = account.NormalizeEmail(email)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		"UPDATE accounts SET browser_id = ?, updated_at = ? WHERE email = ?",
		sessionID, now, email,
	)
	if err != nil {
		return fmt.Errorf("assign browser: %w", err)
	}
	return nil
}

// ClearBrowser removes an account's browser session binding.
func (s *Store) ClearBrowser(ctx context.Context, email string) error {
	email = account.NormalizeEmail(email)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		"UPDATE accounts SET browser_id = NULL, updated_at = ? WHERE email = ?",
		now, email,
	)
	if err != nil {
		return fmt.Errorf("clear browser: %w", err)
	}
	return nil
}

// Delete removes an account record entirely.
func (s *Store) Delete(ctx context.Context, email string) error {
	email = account.NormalizeEmail(email)
	res, err := s.execWithRetry(ctx, "DELETE FROM accounts WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return nil
}

// ListFilter narrows and pages List results.
type ListFilter struct {
	Status   account.Status
	Search   string
	Page     int
	PageSize int
}

// List returns accounts matching the filter plus the total match count before
// paging. Page numbering is 1-based; PageSize <= 0 disables paging.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*account.Account, int, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, "email LIKE ?")
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM accounts"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := "SELECT " + accountColumns + " FROM accounts" + clause + " ORDER BY email"
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, total, nil
}

// Stats aggregates account counts per status.
type Stats struct {
	Total       int
	ByStatus    map[account.Status]int
	WithBrowser int
}

// Stats returns aggregated per-status counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[account.Status]int, len(account.AllStatuses()))}
	for _, status := range account.AllStatuses() {
		stats.ByStatus[status] = 0
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM accounts GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		if parsed, ok := account.ParseStatus(status); ok {
			stats.ByStatus[parsed] = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM accounts WHERE browser_id IS NOT NULL AND browser_id != ''",
	).Scan(&stats.WithBrowser); err != nil {
		return Stats{}, fmt.Errorf("count with browser: %w", err)
	}
	return stats, nil
}
