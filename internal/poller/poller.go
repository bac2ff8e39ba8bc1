// ABOUTME: Poll loop: ping, fetch ticket, execute, submit, then wait for the next cycle
// ABOUTME: Cancellation wakes the inter-cycle wait at once but never interrupts a running cycle

package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lmio/olimp-control/internal/protocol"
)

// Session is one cycle's connection to the control server. Its methods
// report their own failures and return nil when nothing useful happened.
type Session interface {
	Ping(ctx context.Context) *protocol.Ack
	FetchTicket(ctx context.Context) *protocol.Ticket
	SubmitResult(ctx context.Context, res *protocol.ExecutionResult) *protocol.Ack
	Close()
}

// Dialer opens a Session for each cycle.
type Dialer interface {
	NewSession(logger *slog.Logger) Session
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(logger *slog.Logger) Session

func (f DialerFunc) NewSession(logger *slog.Logger) Session { return f(logger) }

// Executor runs a ticket to completion.
type Executor interface {
	Execute(ticket *protocol.Ticket) *protocol.ExecutionResult
}

// ReplayGuard reports whether a ticket ID was already executed, marking it
// if not.
type ReplayGuard interface {
	CheckAndMark(id string) bool
}

// Outcome describes what happened during one cycle.
type Outcome struct {
	ID     string
	Ping   *protocol.Ack
	Ticket *protocol.Ticket
	Result *protocol.ExecutionResult
	Submit *protocol.Ack
	// Replayed is set when the ticket was skipped by the replay guard.
	Replayed bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithReplayGuard skips tickets the guard has already seen.
func WithReplayGuard(g ReplayGuard) Option {
	return func(l *Loop) { l.guard = g }
}

// Loop runs poll cycles until cancelled.
type Loop struct {
	dialer   Dialer
	executor Executor
	interval time.Duration
	guard    ReplayGuard
	logger   *slog.Logger
}

// New creates a Loop that waits interval between cycles.
func New(dialer Dialer, executor Executor, interval time.Duration, logger *slog.Logger, opts ...Option) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		dialer:   dialer,
		executor: executor,
		interval: interval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately. Run returns nil once stopped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("poll loop started", "interval", l.interval)

	for {
		l.RunCycle(context.WithoutCancel(ctx))

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Info("poll loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle performs a single ping, fetch, execute, submit sequence.
func (l *Loop) RunCycle(ctx context.Context) *Outcome {
	out := &Outcome{ID: uuid.NewString()}
	logger := l.logger.With("cycle", out.ID)

	sess := l.dialer.NewSession(logger)
	defer sess.Close()

	out.Ping = sess.Ping(ctx)

	out.Ticket = sess.FetchTicket(ctx)
	if out.Ticket == nil {
		return out
	}

	if l.guard != nil && l.guard.CheckAndMark(out.Ticket.ID) {
		logger.Warn("ticket already executed, skipping", "ticket_id", out.Ticket.ID)
		out.Replayed = true
		return out
	}

	out.Result = l.executor.Execute(out.Ticket)
	out.Submit = sess.SubmitResult(ctx, out.Result)
	return out
}
