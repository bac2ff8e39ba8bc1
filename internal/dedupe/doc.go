// Package dedupe remembers recently executed ticket IDs so that a ticket
// handed out twice within a configurable window is not run twice.
//
// The server is expected to hand out each ticket once. The guard is an
// optional second line for servers that re-issue tickets after a failed
// submission; it is disabled unless agent.replay_window is set.
package dedupe
