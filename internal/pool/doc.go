// Package pool manages a bounded set of remote browser sessions, leasing
// them to pipeline workers with arrival-order fairness and per-account warm
// window reuse.
package pool
