// ABOUTME: http.RoundTripper that retries connection-level failures with exponential backoff
// ABOUTME: Also applies the per-attempt timeout, which stays armed until the body is closed

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default retry policy for connection failures.
const (
	DefaultMaxRetries = 5
	DefaultBackoff    = 500 * time.Millisecond
)

// retryTransport retries requests that never reached the server. Once a
// response has been received it is returned as-is, whatever its content.
type retryTransport struct {
	next       http.RoundTripper
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	attempts := 0
	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		r := req
		if attempts > 0 {
			var err error
			if r, err = rewind(req); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		attempts++

		resp, err := t.attempt(r)
		if err != nil && (ctx.Err() != nil || !isConnectError(err)) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(t.schedule()),
		backoff.WithMaxTries(uint(t.maxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			t.logger.Debug("connection failed, retrying",
				"url", req.URL.Redacted(),
				"attempt", attempts,
				"wait", wait,
				"error", err,
			)
		}),
	)
	if err != nil && attempts > t.maxRetries && isConnectError(err) {
		return nil, fmt.Errorf("giving up after %d retries: %w", t.maxRetries, err)
	}
	return resp, err
}

// schedule waits backoff before the first retry and doubles it for each
// further one, without jitter.
func (t *retryTransport) schedule() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     t.backoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         t.backoff << t.maxRetries,
	}
}

func (t *retryTransport) attempt(req *http.Request) (*http.Response, error) {
	if t.timeout <= 0 {
		return t.next.RoundTrip(req)
	}

	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// rewind clones req with a fresh copy of its body.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replaying request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// isConnectError reports whether err happened before the request reached
// the server: name resolution, dialing, refused or timed-out connects.
func isConnectError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
