// ABOUTME: The three authenticated exchanges: ping, fetch ticket, submit result
// ABOUTME: Every failure is classified and logged here and never returned to the caller

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lmio/olimp-control/internal/protocol"
)

// Operator-facing messages, kept identical across operations.
const (
	MsgFailedAuth = "Response failed authentication validation"
	MsgNoTickets  = "No tickets available"
)

// Operation names used in log records.
const (
	OpPing         = "ping"
	OpFetchTicket  = "fetch_ticket"
	OpSubmitResult = "submit_result"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// AuthError is a response that failed signature or timestamp validation.
// Its payload must not be trusted.
type AuthError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("response failed authentication (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StatusError is an authenticated response with an unexpected status code.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Session is one poll cycle's connection to the control server.
type Session struct {
	client *Client
	pool   *http.Transport
	http   *http.Client
	logger *slog.Logger
}

// Ping reports liveness and uptime. It returns the server's ack, or nil if
// the exchange failed.
func (s *Session) Ping(ctx context.Context) *protocol.Ack {
	env := s.envelope()
	req := protocol.PingRequest{
		Envelope: env,
		Uptime:   s.client.uptime(ctx),
		HasRoot:  0,
	}

	ack, err := s.acknowledge(ctx, http.MethodPost, protocol.PathPing, env.Timestamp, req)
	if err != nil {
		s.report(OpPing, err)
		return nil
	}
	s.logAck(OpPing, ack)
	return ack
}

// FetchTicket asks for the next pending ticket. It returns nil when there
// is none or when the exchange failed.
func (s *Session) FetchTicket(ctx context.Context) *protocol.Ticket {
	env := s.envelope()

	reply, err := s.exchange(ctx, http.MethodGet, protocol.PathTicket, env.Timestamp, protocol.TicketRequest{Envelope: env})
	if err != nil {
		s.report(OpFetchTicket, err)
		return nil
	}
	if reply.status == http.StatusNotFound {
		s.logger.Info(MsgNoTickets, "op", OpFetchTicket)
		return nil
	}

	var resp protocol.TicketResponse
	if err := decode(reply.body, &resp); err != nil {
		s.report(OpFetchTicket, err)
		return nil
	}
	s.logAck(OpFetchTicket, &resp.Ack)

	if reply.status != http.StatusOK {
		s.report(OpFetchTicket, &StatusError{StatusCode: reply.status})
		return nil
	}
	if resp.TicketID == "" || resp.RunAs == "" {
		s.report(OpFetchTicket, errors.New("ticket response is missing tid or runAs"))
		return nil
	}

	ticket := resp.Ticket()
	s.logger.Info("ticket received", "op", OpFetchTicket, "ticket_id", ticket.ID, "run_as", ticket.RunAs)
	return ticket
}

// SubmitResult reports an execution result. It returns the server's ack,
// or nil if the exchange failed.
func (s *Session) SubmitResult(ctx context.Context, res *protocol.ExecutionResult) *protocol.Ack {
	env := s.envelope()
	req := protocol.NewResultSubmission(env, res)

	ack, err := s.acknowledge(ctx, http.MethodPost, protocol.PathTicket, env.Timestamp, req)
	if err != nil {
		s.report(OpSubmitResult, err)
		return nil
	}
	s.logAck(OpSubmitResult, ack)
	return ack
}

// Close releases the session's idle connections.
func (s *Session) Close() {
	s.pool.CloseIdleConnections()
}

func (s *Session) envelope() protocol.Envelope {
	return protocol.NewEnvelope(s.client.now(), s.client.machineID)
}

type reply struct {
	status int
	body   []byte
}

// exchange signs and sends payload, then authenticates the response.
// Only authenticated replies are returned.
func (s *Session) exchange(ctx context.Context, method, path string, timestamp int64, payload any) (*reply, error) {
	body, err := protocol.Encode(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(protocol.AuthHeader, s.client.auth.Sign(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if err := s.client.auth.Validate(raw, timestamp, resp.Header.Get(protocol.AuthHeader)); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: raw, Err: err}
	}
	return &reply{status: resp.StatusCode, body: raw}, nil
}

// acknowledge runs an exchange whose response is a plain ack.
func (s *Session) acknowledge(ctx context.Context, method, path string, timestamp int64, payload any) (*protocol.Ack, error) {
	reply, err := s.exchange(ctx, method, path, timestamp, payload)
	if err != nil {
		return nil, err
	}
	var ack protocol.Ack
	if err := decode(reply.body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (s *Session) logAck(op string, ack *protocol.Ack) {
	s.logger.Info("server acknowledged", "op", op, "status", ack.Status, "message", ack.Message)
}

// report logs a failed exchange according to its class.
func (s *Session) report(op string, err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		s.logger.Warn(MsgFailedAuth,
			"op", op,
			"status_code", authErr.StatusCode,
			"reason", authErr.Err.Error(),
			"body", string(authErr.Body),
		)
		return
	}
	s.logger.Error("exchange failed", "op", op, "error", err)
}
