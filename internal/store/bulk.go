package store

import (
	"context"
	"fmt"
	"strings"

	"gantry/internal/account"
)

// bulkSeparators are tried in order when no explicit separator is given.
var bulkSeparators = []string{"----", "---", "|", ",", ";", "\t"}

// SplitRecordLine breaks one import line into trimmed, non-empty fields. When
// separator is empty, the known separators are tried in order and whitespace
// splitting is the fallback.
func SplitRecordLine(line, separator string) []string {
	var parts []string
	switch {
	case separator != "" && strings.Contains(line, separator):
		parts = strings.Split(line, separator)
	default:
		for _, sep := range bulkSeparators {
			if strings.Contains(line, sep) {
				parts = strings.Split(line, sep)
				break
			}
		}
		if parts == nil {
			parts = strings.Fields(line)
		}
	}

	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int
	Errors   []string
}

// Import ingests account records from bulk text: one record per line, fields
// email, password, recovery_email, secret_key. Blank lines and # comments are
// skipped; duplicate emails overwrite previously stored credentials.
func (s *Store) Import(ctx context.Context, content, separator string) (ImportResult, error) {
	var result ImportResult
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := SplitRecordLine(line, separator)
		if len(fields) == 0 {
			continue
		}

		acct := account.Account{Email: fields[0]}
		if len(fields) > 1 {
			acct.Password = fields[1]
		}
		if len(fields) > 2 {
			acct.RecoveryEmail = fields[2]
		}
		if len(fields) > 3 {
			acct.SecretKey = fields[3]
		}

		if _, err := s.Upsert(ctx, acct); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", acct.Email, err))
			continue
		}
		result.Imported++
	}
	return result, ctx.Err()
}

// Export renders accounts back into bulk text, joining non-empty fields with
// the canonical ---- separator. An empty status exports every account.
func (s *Store) Export(ctx context.Context, status account.Status) (string, int, error) {
	accounts, _, err := s.List(ctx, ListFilter{Status: status})
	if err != nil {
		return "", 0, err
	}

	lines := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		fields := []string{acct.Email}
		if acct.Password != "" {
			fields = append(fields, acct.Password)
		}
		if acct.RecoveryEmail != "" {
			fields = append(fields, acct.RecoveryEmail)
		}
		if acct.SecretKey != "" {
			fields = append(fields, acct.SecretKey)
		}
		lines = append(lines, strings.Join(fields, "----"))
	}
	return strings.Join(lines, "\n"), len(lines), nil
}
