package account

import (
	"strings"
	"time"
)

// Account is one managed account record. Email is the unique identity.
type Account struct {
	Email         string
	Password      string
	RecoveryEmail string
	SecretKey     string
	Status        Status
	Message       string
	BrowserID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is the read-only view handed to automation steps. It omits
// orchestration bookkeeping the step has no business mutating.
type Snapshot struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	RecoveryEmail string `json:"recovery_email"`
	SecretKey     string `json:"secret_key"`
	Status        Status `json:"status"`
}

// Snapshot returns the step-facing view of the account.
func (a Account) Snapshot() Snapshot {
	return Snapshot{
		Email:         a.Email,
		Password:      a.Password,
		RecoveryEmail: a.RecoveryEmail,
		SecretKey:     a.SecretKey,
		Status:        a.Status,
	}
}

// NormalizeEmail canonicalizes an email for identity comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
