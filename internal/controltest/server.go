// ABOUTME: In-process fake control server that signs responses and queues tickets
// ABOUTME: Records pings and submissions and injects authentication and status faults

package controltest

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/lmio/olimp-control/internal/protocol"
	"github.com/lmio/olimp-control/internal/signer"
)

// Fault alters how the server answers requests on a path.
type Fault int

const (
	FaultNone Fault = iota
	// FaultForgeSignature signs responses with the wrong key.
	FaultForgeSignature
	// FaultMissingSignature omits the signature header.
	FaultMissingSignature
	// FaultStaleTimestamp echoes a timestamp other than the request's.
	FaultStaleTimestamp
	// FaultServerError answers 500 with a correctly signed body.
	FaultServerError
	// FaultMalformedBody answers with a signed body that is not JSON.
	FaultMalformedBody
	// FaultHangUp closes the connection without answering.
	FaultHangUp
)

// Server is a fake control server backed by httptest.
type Server struct {
	*httptest.Server

	auth *signer.Authenticator

	mu          sync.Mutex
	tickets     []protocol.Ticket
	faults      map[string]Fault
	pings       []protocol.PingRequest
	submissions []protocol.ResultSubmission
	badRequests int
	requests    map[string]int
}

// NewServer starts a server that shares key with the agent.
func NewServer(key []byte) *Server {
	s := &Server{
		auth:     signer.New(key),
		faults:   make(map[string]Fault),
		requests: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+protocol.PathPing, s.handlePing)
	mux.HandleFunc("GET "+protocol.PathTicket, s.handleFetch)
	mux.HandleFunc("POST "+protocol.PathTicket, s.handleSubmit)
	s.Server = httptest.NewServer(mux)
	return s
}

// QueueTicket appends a ticket to be handed out by GET /ticket.
func (s *Server) QueueTicket(t protocol.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, t)
}

// InjectFault sets the fault for every method on path.
func (s *Server) InjectFault(path string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = f
}

// Pings returns the ping requests received so far.
func (s *Server) Pings() []protocol.PingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.PingRequest(nil), s.pings...)
}

// Submissions returns the result submissions received so far.
func (s *Server) Submissions() []protocol.ResultSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.ResultSubmission(nil), s.submissions...)
}

// Requests returns how many requests arrived for "METHOD /path".
func (s *Server) Requests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method+" "+path]
}

// BadRequests returns how many requests failed signature verification.
func (s *Server) BadRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badRequests
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req protocol.PingRequest
	if !s.readSigned(w, r, &req) {
		return
	}
	s.mu.Lock()
	s.pings = append(s.pings, req)
	s.mu.Unlock()

	s.respond(w, r, http.StatusOK, req.Timestamp, map[string]any{
		"status":  "OK",
		"message": "pong",
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req protocol.TicketRequest
	if !s.readSigned(w, r, &req) {
		return
	}

	s.mu.Lock()
	var ticket *protocol.Ticket
	if len(s.tickets) > 0 {
		ticket = &s.tickets[0]
		s.tickets = s.tickets[1:]
	}
	s.mu.Unlock()

	if ticket == nil {
		s.respond(w, r, http.StatusNotFound, req.Timestamp, map[string]any{
			"status":  "NOT_FOUND",
			"message": "no tickets",
		})
		return
	}
	s.respond(w, r, http.StatusOK, req.Timestamp, map[string]any{
		"status":  "OK",
		"message": "ticket assigned",
		"tid":     ticket.ID,
		"cmd":     ticket.Command,
		"runAs":   ticket.RunAs,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req protocol.ResultSubmission
	if !s.readSigned(w, r, &req) {
		return
	}
	s.mu.Lock()
	s.submissions = append(s.submissions, req)
	s.mu.Unlock()

	s.respond(w, r, http.StatusOK, req.Timestamp, map[string]any{
		"status":  "OK",
		"message": "result stored",
	})
}

// readSigned verifies the request signature and decodes the body into v.
func (s *Server) readSigned(w http.ResponseWriter, r *http.Request, v any) bool {
	s.mu.Lock()
	s.requests[r.Method+" "+r.URL.Path]++
	s.mu.Unlock()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return false
	}
	if !hmacEqual(s.auth.Sign(body), r.Header.Get(protocol.AuthHeader)) {
		s.mu.Lock()
		s.badRequests++
		s.mu.Unlock()
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return false
	}
	return true
}

func hmacEqual(want, got string) bool {
	return got != "" && hmac.Equal([]byte(want), []byte(got))
}

// respond writes a signed reply that echoes timestamp, applying any fault.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, timestamp int64, fields map[string]any) {
	s.mu.Lock()
	fault := s.faults[r.URL.Path]
	s.mu.Unlock()

	if fault == FaultStaleTimestamp {
		timestamp--
	}
	if fault == FaultServerError {
		status = http.StatusInternalServerError
		fields = map[string]any{"status": "ERROR", "message": "internal error"}
	}
	fields["timestamp"] = timestamp

	body, err := protocol.Encode(fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch fault {
	case FaultMalformedBody:
		body = []byte("<html>gateway timeout</html>")
	case FaultHangUp:
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
	}

	switch fault {
	case FaultMissingSignature:
	case FaultForgeSignature:
		w.Header().Set(protocol.AuthHeader, signer.New([]byte("not-the-key")).Sign(body))
	default:
		w.Header().Set(protocol.AuthHeader, s.auth.Sign(body))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
