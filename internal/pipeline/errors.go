package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying pipeline failures. Wrap tags concrete errors
// with one of these so callers can branch on the class without string
// matching.
var (
	ErrResourceUnavailable = errors.New("browser backend unavailable")
	ErrResourceExhausted   = errors.New("no browser session within retry budget")
	ErrStepTimeout         = errors.New("step timed out")
	ErrStepFailure         = errors.New("step failed")
	ErrAlreadyRunning      = errors.New("account already has work in flight")
	ErrNotRunning          = errors.New("no work in flight for account")
	ErrConfiguration       = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStepFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
