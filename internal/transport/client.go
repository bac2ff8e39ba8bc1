// ABOUTME: Control server client holding credentials, timeout and retry policy
// ABOUTME: Opens one pooled HTTP session per poll cycle

package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lmio/olimp-control/internal/hostinfo"
	"github.com/lmio/olimp-control/internal/signer"
)

// Credentials identify and authenticate this machine. They do not change
// for the lifetime of the process.
type Credentials struct {
	Secret    []byte
	MachineID string
}

// Config configures a Client.
type Config struct {
	// BaseURL is the control API root, without a trailing slash.
	BaseURL     string
	Credentials Credentials
	// Timeout bounds each connection attempt. Zero means no timeout.
	Timeout time.Duration
	// MaxRetries is the number of connection retries; zero selects
	// DefaultMaxRetries and a negative value disables retries.
	MaxRetries int
	// Backoff is the wait before the first retry, doubled for each
	// further one. Zero selects DefaultBackoff.
	Backoff time.Duration
	// Uptime describes host uptime for pings. Defaults to hostinfo.Uptime.
	Uptime func(context.Context) string
	// Now stamps request envelopes. Defaults to time.Now.
	Now func() time.Time
}

// Client produces authenticated sessions against the control server.
type Client struct {
	baseURL   string
	machineID string
	auth      *signer.Authenticator
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	uptime    func(context.Context) string
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		machineID: cfg.Credentials.MachineID,
		auth:      signer.New(cfg.Credentials.Secret),
		timeout:   cfg.Timeout,
		retries:   cfg.MaxRetries,
		backoff:   cfg.Backoff,
		uptime:    cfg.Uptime,
		now:       cfg.Now,
		logger:    logger,
	}

	switch {
	case c.retries == 0:
		c.retries = DefaultMaxRetries
	case c.retries < 0:
		c.retries = 0
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.uptime == nil {
		c.uptime = hostinfo.Uptime
	}
	if c.now == nil {
		c.now = time.Now
	}

	return c
}

// NewSession opens a session with a fresh connection pool. The session
// logs through logger, or through the client's logger when nil.
func (c *Client) NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = c.logger
	}

	pool := http.DefaultTransport.(*http.Transport).Clone()
	return &Session{
		client: c,
		pool:   pool,
		http: &http.Client{
			Transport: &retryTransport{
				next:       pool,
				maxRetries: c.retries,
				backoff:    c.backoff,
				timeout:    c.timeout,
				logger:     logger,
			},
		},
		logger: logger,
	}
}
