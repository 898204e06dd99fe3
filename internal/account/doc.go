// Package account defines the account record, its status lifecycle, and the
// pure transition table the orchestrator applies to step outcomes.
//
// Statuses advance pending → link_ready → verified → subscribed; ineligible
// and error are side terminals reachable from any non-terminal status.
// Transition is a pure function so workers never mutate shared account state
// directly; persistence happens in the store after a transition is computed.
package account
