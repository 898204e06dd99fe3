package account

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the lifecycle of an account in the pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusLinkReady  Status = "link_ready"
	StatusVerified   Status = "verified"
	StatusSubscribed Status = "subscribed"
	StatusIneligible Status = "ineligible"
	StatusError      Status = "error"
)

// Stage identifies one step of the provisioning pipeline.
type Stage string

const (
	StageSetup2FA        Stage = "setup_2fa"
	StageLinkRetrieval   Stage = "link_retrieval"
	StageAgeVerification Stage = "age_verification"
	StageCardBinding     Stage = "card_binding"
)

// ErrInvalidTransition is returned when a transition is attempted from a
// terminal status without an explicit override.
var ErrInvalidTransition = errors.New("invalid transition")

var allStatuses = []Status{
	StatusPending,
	StatusLinkReady,
	StatusVerified,
	StatusSubscribed,
	StatusIneligible,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// stageOrder is the full pipeline in execution order.
var stageOrder = []Stage{
	StageSetup2FA,
	StageLinkRetrieval,
	StageAgeVerification,
	StageCardBinding,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// AllStages returns the pipeline stages in execution order.
func AllStages() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == normalized {
			return stage, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further automatic scheduling happens from a
// status. StatusError is terminal for automatic scheduling but re-enterable by
// manual resubmission.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSubscribed, StatusIneligible:
		return true
	default:
		return false
	}
}

// NextStage returns the stage that follows s, or false after the last one.
func NextStage(s Stage) (Stage, bool) {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// StartStage computes the stage a submission should begin at given the
// account's current status. Terminal statuses resume nowhere; error resumes
// from the stage after the last successfully persisted status.
func StartStage(status Status) (Stage, bool) {
	switch status {
	case StatusPending, StatusError:
		return StageSetup2FA, true
	case StatusLinkReady:
		return StageAgeVerification, true
	case StatusVerified:
		return StageCardBinding, true
	default:
		return "", false
	}
}

// Transition applies a stage outcome to the current status and returns the new
// status. It is pure: callers persist the result and refresh message and
// updated_at themselves. Terminal statuses reject transitions unless override
// is set.
func Transition(current Status, stage Stage, outcome Outcome, override bool) (Status, error) {
	if current.IsTerminal() && !override {
		return current, fmt.Errorf("%w: account is %s", ErrInvalidTransition, current)
	}

	switch outcome.Kind {
	case OutcomeFailure:
		return StatusError, nil
	case OutcomeIneligible:
		return StatusIneligible, nil
	case OutcomeSuccess:
	default:
		return current, fmt.Errorf("%w: unknown outcome %q", ErrInvalidTransition, outcome.Kind)
	}

	switch stage {
	case StageSetup2FA:
		// 2FA setup alone does not advance the pipeline status.
		return current, nil
	case StageLinkRetrieval:
		return StatusLinkReady, nil
	case StageAgeVerification:
		return StatusVerified, nil
	case StageCardBinding:
		return StatusSubscribed, nil
	default:
		return current, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, stage)
	}
}
