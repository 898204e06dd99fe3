// Package daemon ties the account store, session pool, and orchestrator into
// a single-instance background service controlled over IPC.
package daemon
