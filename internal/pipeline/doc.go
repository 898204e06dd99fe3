// Package pipeline schedules account provisioning work across a bounded
// worker pool. The orchestrator accepts submissions, keeps at most one work
// item in flight per account, leases browser sessions for each stage, and
// applies the account state machine to every stage outcome.
package pipeline
