package testsupport

import (
	"context"
	"testing"

	"gantry/internal/account"
	"gantry/internal/config"
	"gantry/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewAccount creates a pending account for tests using the provided store.
func NewAccount(t testing.TB, st *store.Store, email string) *account.Account {
	t.Helper()

	acct, err := st.Upsert(context.Background(), account.Account{
		Email:    email,
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return acct
}
