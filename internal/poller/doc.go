// Package poller drives the agent's poll cycle.
//
// One cycle is: open a session, ping, fetch a ticket, and if one was
// handed out, execute it and submit the result. Cycles run strictly one
// after another on a single goroutine, separated by the poll interval.
//
// # Cancellation
//
// Run stops when its context is cancelled. Cancellation is only observed
// between cycles: the inter-cycle wait wakes immediately, but a cycle that
// is already running (including a long ticket) completes first. Each cycle
// runs under a context detached from cancellation for that reason.
//
// # Failures
//
// The session and executor report their own failures. Nothing that
// happens inside a cycle ends the loop; a failed ping still proceeds to
// the ticket fetch, and a failed fetch simply means no ticket this cycle.
package poller
