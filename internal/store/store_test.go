package store_test

import (
	"context"
	"errors"
	"testing"

	"gantry/internal/account"
	"gantry/internal/store"
	"gantry/internal/testsupport"
)

func TestUpsertAndGet(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	acct, err := st.Upsert(ctx, account.Account{
		Email:         "User@Example.com",
		Password:      "pw",
		RecoveryEmail: "backup@example.com",
		SecretKey:     "ABCD1234",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if acct.Email != "user@example.com" {
		t.Fatalf("email not normalized: %q", acct.Email)
	}
	if acct.Status != account.StatusPending {
		t.Fatalf("new account status = %q, want pending", acct.Status)
	}

	got, err := st.Get(ctx, "USER@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Password != "pw" || got.RecoveryEmail != "backup@example.com" || got.SecretKey != "ABCD1234" {
		t.Fatalf("unexpected stored fields: %+v", got)
	}
}

func TestUpsertPreservesStatusOnReimport(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewAccount(t, st, "a@example.com")
	if err := st.ApplyTransition(ctx, "a@example.com", account.StatusLinkReady, "link ok"); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}

	acct, err := st.Upsert(ctx, account.Account{Email: "a@example.com", Password: "newpw"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if acct.Status != account.StatusLinkReady {
		t.Fatalf("reimport reset status to %q", acct.Status)
	}
	if acct.Password != "newpw" {
		t.Fatalf("reimport did not update credentials: %q", acct.Password)
	}
	if acct.Message != "link ok" {
		t.Fatalf("reimport clobbered message: %q", acct.Message)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := st.Get(context.Background(), "ghost@example.com")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestApplyTransitionMissingAccount(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	err := st.ApplyTransition(context.Background(), "ghost@example.com", account.StatusError, "boom")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("ApplyTransition missing = %v, want ErrNotFound", err)
	}
}

func TestAssignAndClearBrowser(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewAccount(t, st, "a@example.com")
	if err := st.AssignBrowser(ctx, "a@example.com", "win-42"); err != nil {
		t.Fatalf("AssignBrowser: %v", err)
	}
	acct, err := st.Get(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acct.BrowserID != "win-42" {
		t.Fatalf("BrowserID = %q, want win-42", acct.BrowserID)
	}

	if err := st.ClearBrowser(ctx, "a@example.com"); err != nil {
		t.Fatalf("ClearBrowser: %v", err)
	}
	acct, err = st.Get(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Get after clear: %v", err)
	}
	if acct.BrowserID != "" {
		t.Fatalf("BrowserID not cleared: %q", acct.BrowserID)
	}
}

func TestDelete(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewAccount(t, st, "a@example.com")
	if err := st.Delete(ctx, "a@example.com"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, "a@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := st.Delete(ctx, "a@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("double Delete = %v, want ErrNotFound", err)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, email := range []string{"alpha@x.com", "bravo@x.com", "charlie@y.com"} {
		testsupport.NewAccount(t, st, email)
	}
	if err := st.ApplyTransition(ctx, "charlie@y.com", account.StatusLinkReady, ""); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}

	accounts, total, err := st.List(ctx, store.ListFilter{Status: account.StatusPending})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if total != 2 || len(accounts) != 2 {
		t.Fatalf("pending count = %d/%d, want 2/2", len(accounts), total)
	}

	accounts, total, err = st.List(ctx, store.ListFilter{Search: "@x.com"})
	if err != nil {
		t.Fatalf("List by search: %v", err)
	}
	if total != 2 {
		t.Fatalf("search total = %d, want 2", total)
	}

	accounts, total, err = st.List(ctx, store.ListFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List paged: %v", err)
	}
	if total != 3 || len(accounts) != 1 {
		t.Fatalf("page 2 = %d rows of %d total, want 1 of 3", len(accounts), total)
	}
	if accounts[0].Email != "charlie@y.com" {
		t.Fatalf("page 2 row = %q, want charlie@y.com", accounts[0].Email)
	}
}

func TestStats(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		testsupport.NewAccount(t, st, email)
	}
	if err := st.ApplyTransition(ctx, "b@x.com", account.StatusSubscribed, "done"); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if err := st.AssignBrowser(ctx, "c@x.com", "win-1"); err != nil {
		t.Fatalf("AssignBrowser: %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[account.StatusPending] != 2 {
		t.Fatalf("pending = %d, want 2", stats.ByStatus[account.StatusPending])
	}
	if stats.ByStatus[account.StatusSubscribed] != 1 {
		t.Fatalf("subscribed = %d, want 1", stats.ByStatus[account.StatusSubscribed])
	}
	if stats.WithBrowser != 1 {
		t.Fatalf("WithBrowser = %d, want 1", stats.WithBrowser)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := st.Upsert(context.Background(), account.Account{Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := testsupport.MustOpenStore(t, cfg)
	if _, err := st2.Get(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
