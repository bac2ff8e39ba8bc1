// Package signer authenticates control server messages with a shared secret.
//
// Bodies are signed with HMAC-SHA1 over the exact bytes on the wire and the
// signature travels hex-encoded in the X-lmio-auth header. A response is
// trusted only when both hold:
//
//   - its header equals the HMAC of its raw body, and
//   - the timestamp inside its body equals the timestamp the agent sent.
//
// The second check binds a response to its request, so a server (or anyone
// in between) cannot replay an old, correctly signed response.
//
// Validate reports why a message was rejected; Verify collapses that to a
// boolean for callers that only need the verdict.
package signer
