package account_test

import (
	"errors"
	"testing"

	"gantry/internal/account"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		current account.Status
		stage   account.Stage
		outcome account.Outcome
		want    account.Status
	}{
		{"2fa success keeps status", account.StatusPending, account.StageSetup2FA, account.Success(""), account.StatusPending},
		{"2fa failure", account.StatusPending, account.StageSetup2FA, account.Failure("bad credentials"), account.StatusError},
		{"link retrieval success", account.StatusPending, account.StageLinkRetrieval, account.Success(""), account.StatusLinkReady},
		{"link retrieval ineligible", account.StatusPending, account.StageLinkRetrieval, account.Ineligible("no offer"), account.StatusIneligible},
		{"verification success", account.StatusLinkReady, account.StageAgeVerification, account.Success(""), account.StatusVerified},
		{"verification ineligible", account.StatusLinkReady, account.StageAgeVerification, account.Ineligible("region"), account.StatusIneligible},
		{"verification failure", account.StatusLinkReady, account.StageAgeVerification, account.Failure("timeout"), account.StatusError},
		{"binding success", account.StatusVerified, account.StageCardBinding, account.Success(""), account.StatusSubscribed},
		{"binding ineligible", account.StatusVerified, account.StageCardBinding, account.Ineligible("card rejected"), account.StatusIneligible},
		{"retry from error", account.StatusError, account.StageLinkRetrieval, account.Success(""), account.StatusLinkReady},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := account.Transition(tc.current, tc.stage, tc.outcome, false)
			if err != nil {
				t.Fatalf("Transition returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Transition(%s, %s, %s) = %s, want %s", tc.current, tc.stage, tc.outcome.Kind, got, tc.want)
			}
		})
	}
}

func TestTransitionRejectsTerminalWithoutOverride(t *testing.T) {
	for _, status := range []account.Status{account.StatusSubscribed, account.StatusIneligible} {
		_, err := account.Transition(status, account.StageCardBinding, account.Success(""), false)
		if !errors.Is(err, account.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition from %s, got %v", status, err)
		}
	}
}

func TestTransitionAllowsOverrideFromTerminal(t *testing.T) {
	got, err := account.Transition(account.StatusSubscribed, account.StageCardBinding, account.Success(""), true)
	if err != nil {
		t.Fatalf("Transition with override: %v", err)
	}
	if got != account.StatusSubscribed {
		t.Fatalf("unexpected status %s", got)
	}
}

func TestStartStage(t *testing.T) {
	cases := []struct {
		status account.Status
		stage  account.Stage
		ok     bool
	}{
		{account.StatusPending, account.StageSetup2FA, true},
		{account.StatusError, account.StageSetup2FA, true},
		{account.StatusLinkReady, account.StageAgeVerification, true},
		{account.StatusVerified, account.StageCardBinding, true},
		{account.StatusSubscribed, "", false},
		{account.StatusIneligible, "", false},
	}
	for _, tc := range cases {
		stage, ok := account.StartStage(tc.status)
		if ok != tc.ok || stage != tc.stage {
			t.Fatalf("StartStage(%s) = (%s, %v), want (%s, %v)", tc.status, stage, ok, tc.stage, tc.ok)
		}
	}
}

func TestNextStageOrder(t *testing.T) {
	order := account.AllStages()
	for i := 0; i < len(order)-1; i++ {
		next, ok := account.NextStage(order[i])
		if !ok || next != order[i+1] {
			t.Fatalf("NextStage(%s) = (%s, %v)", order[i], next, ok)
		}
	}
	if _, ok := account.NextStage(order[len(order)-1]); ok {
		t.Fatal("expected no stage after the last one")
	}
}

func TestParseStatusAndStage(t *testing.T) {
	if status, ok := account.ParseStatus(" Link_Ready "); !ok || status != account.StatusLinkReady {
		t.Fatalf("ParseStatus = (%s, %v)", status, ok)
	}
	if _, ok := account.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if stage, ok := account.ParseStage("CARD_BINDING"); !ok || stage != account.StageCardBinding {
		t.Fatalf("ParseStage = (%s, %v)", stage, ok)
	}
	if _, ok := account.ParseStage("encode"); ok {
		t.Fatal("expected unknown stage to fail")
	}
}
