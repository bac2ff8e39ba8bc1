// ABOUTME: Wire types for the control server API: envelopes, tickets and acknowledgements
// ABOUTME: Encode produces the exact bytes that are signed and put on the wire

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AuthHeader carries the hex HMAC of the body on requests and responses.
const AuthHeader = "X-lmio-auth"

// Endpoint paths relative to the control API base URL.
const (
	PathPing   = "/ping"
	PathTicket = "/ticket"
)

// Envelope holds the fields shared by every authenticated request.
type Envelope struct {
	Timestamp int64  `json:"timestamp"`
	MachineID string `json:"mid"`
}

// NewEnvelope stamps an envelope with now in Unix milliseconds.
func NewEnvelope(now time.Time, machineID string) Envelope {
	return Envelope{
		Timestamp: now.UnixMilli(),
		MachineID: machineID,
	}
}

// PingRequest is the body of POST /ping.
type PingRequest struct {
	Envelope
	Uptime  string `json:"uptime"`
	HasRoot int    `json:"hasRoot"`
}

// TicketRequest is the body of GET /ticket.
type TicketRequest struct {
	Envelope
}

// ResultSubmission is the body of POST /ticket.
type ResultSubmission struct {
	Envelope
	TicketID string  `json:"tid"`
	ExecTime float64 `json:"exectime"`
	Stdout   string  `json:"stdout"`
	Stderr   string  `json:"stderr"`
	ExitCode int     `json:"exitcode"`
}

// NewResultSubmission converts an execution result into its wire form.
func NewResultSubmission(env Envelope, res *ExecutionResult) ResultSubmission {
	return ResultSubmission{
		Envelope: env,
		TicketID: res.TicketID,
		ExecTime: res.DurationSeconds(),
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		ExitCode: res.ExitCode,
	}
}

// Ack is the acknowledgement the server returns for every operation.
// Status and Message are shown to the operator as-is, so they are kept untyped.
// The body's timestamp is checked during validation and not decoded here.
type Ack struct {
	Status  any `json:"status"`
	Message any `json:"message"`
}

// TicketResponse is the 200 body of GET /ticket.
type TicketResponse struct {
	Ack
	TicketID string `json:"tid"`
	Command  string `json:"cmd"`
	RunAs    string `json:"runAs"`
}

// Ticket returns the ticket carried by the response.
func (r *TicketResponse) Ticket() *Ticket {
	return &Ticket{
		ID:      r.TicketID,
		Command: r.Command,
		RunAs:   r.RunAs,
	}
}

// Ticket is a single command directive issued by the server.
type Ticket struct {
	ID      string
	Command string
	RunAs   string
}

// ExecutionResult is the outcome of running a ticket.
type ExecutionResult struct {
	TicketID string
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// DurationSeconds reports the wall-clock duration in fractional seconds.
func (r *ExecutionResult) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

// Encode marshals v to compact JSON without HTML escaping and without a
// trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
