package account

import "strings"

// OutcomeKind classifies a step result.
type OutcomeKind string

const (
	OutcomeSuccess    OutcomeKind = "success"
	OutcomeIneligible OutcomeKind = "ineligible"
	OutcomeFailure    OutcomeKind = "failure"
)

// Outcome is what an automation step reports back for one stage attempt.
// Data carries optional step-specific results (e.g. a retrieved eligibility
// link) that get folded into the persisted message.
type Outcome struct {
	Kind    OutcomeKind       `json:"outcome"`
	Message string            `json:"message,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// ParseOutcomeKind converts a string into a known OutcomeKind.
func ParseOutcomeKind(value string) (OutcomeKind, bool) {
	switch OutcomeKind(strings.ToLower(strings.TrimSpace(value))) {
	case OutcomeSuccess:
		return OutcomeSuccess, true
	case OutcomeIneligible:
		return OutcomeIneligible, true
	case OutcomeFailure:
		return OutcomeFailure, true
	default:
		return "", false
	}
}

// Success builds a success outcome with an optional message.
func Success(message string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Message: message}
}

// Ineligible builds an ineligible outcome with the step's explanation.
func Ineligible(message string) Outcome {
	return Outcome{Kind: OutcomeIneligible, Message: message}
}

// Failure builds a failure outcome with the step's reason.
func Failure(message string) Outcome {
	return Outcome{Kind: OutcomeFailure, Message: message}
}
