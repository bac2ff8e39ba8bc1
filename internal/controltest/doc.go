// Package controltest runs an in-process control server for tests.
//
// The server speaks the same authenticated protocol as the real one: it
// checks request signatures, echoes the request timestamp, signs its
// responses, hands out queued tickets one per GET /ticket and records
// every ping and result submission.
//
// Faults can be injected per path to exercise the agent's failure handling:
//
//	srv := controltest.NewServer(key)
//	defer srv.Close()
//	srv.QueueTicket(protocol.Ticket{ID: "42", Command: "whoami", RunAs: "svc"})
//	srv.InjectFault(protocol.PathPing, controltest.FaultForgeSignature)
package controltest
