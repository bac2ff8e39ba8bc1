// Package transport talks to the control server over authenticated HTTP.
//
// # Sessions
//
// A Client holds the immutable pieces: base URL, credentials, timeout and
// retry policy. Each poll cycle opens a Session with its own connection
// pool and closes it at the end of the cycle:
//
//	sess := client.NewSession(logger)
//	defer sess.Close()
//	sess.Ping(ctx)
//	if ticket := sess.FetchTicket(ctx); ticket != nil { ... }
//
// # Failure policy
//
// Session methods never return errors. Every failure is logged and
// classified, and the method reports "nothing useful happened" (a nil
// return) so that one bad exchange cannot stop the agent:
//
//   - connection failures are retried below the authentication layer, up
//     to MaxRetries times with exponential backoff, then logged;
//   - authentication failures (bad signature, timestamp not echoed) are
//     logged together with the raw body and never retried;
//   - unexpected status codes and malformed JSON are logged.
//
// The per-request timeout bounds each connection attempt; backoff between
// attempts is not counted against it.
package transport
