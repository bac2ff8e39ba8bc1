// ABOUTME: Tests for the poll loop using in-memory sessions and executors
// ABOUTME: Covers cycle ordering, fail-soft steps, cancellation latency and the replay guard

package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmio/olimp-control/internal/dedupe"
	"github.com/lmio/olimp-control/internal/protocol"
)

type fakeSession struct {
	d *fakeDialer
}

func (s *fakeSession) Ping(ctx context.Context) *protocol.Ack {
	s.d.record("ping")
	if s.d.pingFails {
		return nil
	}
	return &protocol.Ack{Status: "OK", Message: "pong"}
}

func (s *fakeSession) FetchTicket(ctx context.Context) *protocol.Ticket {
	s.d.record("fetch")
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if len(s.d.tickets) == 0 {
		return nil
	}
	t := s.d.tickets[0]
	s.d.tickets = s.d.tickets[1:]
	return t
}

func (s *fakeSession) SubmitResult(ctx context.Context, res *protocol.ExecutionResult) *protocol.Ack {
	s.d.record("submit")
	s.d.mu.Lock()
	s.d.submitted = append(s.d.submitted, res)
	s.d.mu.Unlock()
	return &protocol.Ack{Status: "OK", Message: "stored"}
}

func (s *fakeSession) Close() {
	s.d.record("close")
	select {
	case s.d.cycleDone <- struct{}{}:
	default:
	}
}

type fakeDialer struct {
	mu        sync.Mutex
	calls     []string
	tickets   []*protocol.Ticket
	submitted []*protocol.ExecutionResult
	pingFails bool
	cycleDone chan struct{}
}

func newFakeDialer(tickets ...*protocol.Ticket) *fakeDialer {
	return &fakeDialer{tickets: tickets, cycleDone: make(chan struct{}, 1)}
}

func (d *fakeDialer) NewSession(logger *slog.Logger) Session {
	d.record("open")
	return &fakeSession{d: d}
}

func (d *fakeDialer) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *fakeDialer) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDialer) Submitted() []*protocol.ExecutionResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*protocol.ExecutionResult(nil), d.submitted...)
}

type fakeExecutor struct {
	mu      sync.Mutex
	ran     []string
	started chan struct{}
	release chan struct{}
}

func (e *fakeExecutor) Execute(t *protocol.Ticket) *protocol.ExecutionResult {
	e.mu.Lock()
	e.ran = append(e.ran, t.ID)
	e.mu.Unlock()
	if e.started != nil {
		close(e.started)
	}
	if e.release != nil {
		<-e.release
	}
	return &protocol.ExecutionResult{TicketID: t.ID, Stdout: []byte("ok\n")}
}

func (e *fakeExecutor) Ran() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ran...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCycle_NoTicket(t *testing.T) {
	d := newFakeDialer()
	ex := &fakeExecutor{}
	l := New(d, ex, time.Minute, discardLogger())

	out := l.RunCycle(context.Background())

	assert.Equal(t, []string{"open", "ping", "fetch", "close"}, d.Calls())
	assert.Empty(t, ex.Ran())
	assert.Nil(t, out.Ticket)
	assert.Nil(t, out.Result)
	assert.NotNil(t, out.Ping)
	assert.NotEmpty(t, out.ID)
}

func TestRunCycle_TicketExecutedAndSubmitted(t *testing.T) {
	ticket := &protocol.Ticket{ID: "t1", Command: "echo hi", RunAs: "nobody"}
	d := newFakeDialer(ticket)
	ex := &fakeExecutor{}
	l := New(d, ex, time.Minute, discardLogger())

	out := l.RunCycle(context.Background())

	assert.Equal(t, []string{"open", "ping", "fetch", "submit", "close"}, d.Calls())
	assert.Equal(t, []string{"t1"}, ex.Ran())
	require.Len(t, d.Submitted(), 1)
	assert.Equal(t, "t1", d.Submitted()[0].TicketID)
	assert.Equal(t, ticket, out.Ticket)
	assert.NotNil(t, out.Submit)
}

func TestRunCycle_FailedPingStillFetchesAndExecutes(t *testing.T) {
	d := newFakeDialer(&protocol.Ticket{ID: "t1", Command: "true", RunAs: "svc"})
	d.pingFails = true
	ex := &fakeExecutor{}
	l := New(d, ex, time.Minute, discardLogger())

	out := l.RunCycle(context.Background())

	assert.Nil(t, out.Ping)
	assert.Equal(t, []string{"open", "ping", "fetch", "submit", "close"}, d.Calls())
	assert.Equal(t, []string{"t1"}, ex.Ran())
}

func TestRunCycle_ReplayGuardSkipsDuplicates(t *testing.T) {
	d := newFakeDialer(
		&protocol.Ticket{ID: "dup", Command: "true", RunAs: "svc"},
		&protocol.Ticket{ID: "dup", Command: "true", RunAs: "svc"},
	)
	ex := &fakeExecutor{}
	l := New(d, ex, time.Minute, discardLogger(), WithReplayGuard(dedupe.New(time.Hour, 16)))

	first := l.RunCycle(context.Background())
	second := l.RunCycle(context.Background())

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Nil(t, second.Result)
	assert.Equal(t, []string{"dup"}, ex.Ran())
	assert.Len(t, d.Submitted(), 1)
}

func TestRun_RepeatsCycles(t *testing.T) {
	d := newFakeDialer()
	l := New(d, &fakeExecutor{}, 5*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-d.cycleDone:
		case <-time.After(5 * time.Second):
			t.Fatal("cycle did not complete")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_CancelDuringWaitReturnsPromptly(t *testing.T) {
	d := newFakeDialer()
	l := New(d, &fakeExecutor{}, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-d.cycleDone:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle did not complete")
	}

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("Run waited for the poll interval instead of returning")
	}
}

func TestRun_CancelDuringTicketDoesNotInterruptIt(t *testing.T) {
	d := newFakeDialer(&protocol.Ticket{ID: "long", Command: "sleep 1", RunAs: "svc"})
	ex := &fakeExecutor{started: make(chan struct{}), release: make(chan struct{})}
	l := New(d, ex, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-ex.started:
	case <-time.After(5 * time.Second):
		t.Fatal("ticket did not start")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while the ticket was still executing")
	case <-time.After(50 * time.Millisecond):
	}

	close(ex.release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the cycle completed")
	}

	require.Len(t, d.Submitted(), 1, "result must still be submitted after cancellation")
	assert.Equal(t, "long", d.Submitted()[0].TicketID)
}

func TestRun_AlreadyCancelledRunsOneCycle(t *testing.T) {
	d := newFakeDialer()
	l := New(d, &fakeExecutor{}, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, []string{"open", "ping", "fetch", "close"}, d.Calls())
}

func TestDialerFunc(t *testing.T) {
	d := newFakeDialer()
	var got *slog.Logger
	f := DialerFunc(func(logger *slog.Logger) Session {
		got = logger
		return d.NewSession(logger)
	})

	logger := discardLogger()
	assert.NotNil(t, f.NewSession(logger))
	assert.Same(t, logger, got)
}
