// Package protocol defines the messages exchanged with the control server.
//
// # Envelope
//
// Every request body starts with the same two fields:
//
//	{"timestamp": 1718000000000, "mid": "<machine id>"}
//
// timestamp is milliseconds since the Unix epoch, generated fresh for each
// request. The server echoes it verbatim in the response body, which binds a
// response to the request that produced it.
//
// # Endpoints
//
//	POST /ping    {timestamp, mid, uptime, hasRoot}            -> {status, message}
//	GET  /ticket  {timestamp, mid}                             -> {status, message, tid, cmd, runAs} | 404
//	POST /ticket  {timestamp, mid, tid, exectime, stdout,
//	               stderr, exitcode}                           -> {status, message}
//
// Requests and responses carry an X-lmio-auth header holding the hex
// HMAC-SHA1 of the raw body. Encode produces the exact bytes that are signed
// and transmitted, so callers must never re-marshal a body after signing it.
package protocol
