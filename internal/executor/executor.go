// ABOUTME: Runs a ticket's command as its user and captures output, exit code and duration
// ABOUTME: Spawn failures become exit code -1 so the server still receives a result

package executor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/lmio/olimp-control/internal/protocol"
)

// ExitSpawnFailure is reported when the command could not be started.
const ExitSpawnFailure = -1

// Executor runs tickets one at a time.
type Executor struct {
	switcher Switcher
	logger   *slog.Logger
}

// New creates an Executor that switches identity with sw.
func New(sw Switcher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{switcher: sw, logger: logger}
}

// Execute runs ticket.Command as ticket.RunAs and blocks until it exits.
func (e *Executor) Execute(ticket *protocol.Ticket) *protocol.ExecutionResult {
	logger := e.logger.With("ticket_id", ticket.ID, "run_as", ticket.RunAs)
	logger.Info("executing ticket")

	var stdout, stderr bytes.Buffer
	start := time.Now()

	cmd, err := e.switcher.Command(ticket.RunAs)
	if err == nil {
		cmd.Stdin = strings.NewReader(ticket.Command)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	}

	res := &protocol.ExecutionResult{
		TicketID: ticket.ID,
		Duration: time.Since(start),
	}

	code, exited := exitCode(err)
	if !exited {
		logger.Error("ticket could not be started", "error", err)
		if stderr.Len() > 0 && !bytes.HasSuffix(stderr.Bytes(), []byte("\n")) {
			stderr.WriteByte('\n')
		}
		fmt.Fprintf(&stderr, "olimp-control: %v\n", err)
	}

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	res.ExitCode = code

	logger.Info("ticket finished",
		"exit_code", res.ExitCode,
		"duration", res.Duration,
		"stdout_bytes", len(res.Stdout),
		"stderr_bytes", len(res.Stderr),
	)
	return res
}

// exitCode maps a Run error to the process exit code. A process killed by
// a signal reports the negated signal number. exited is false when the
// process never ran.
func exitCode(err error) (code int, exited bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitSpawnFailure, false
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal()), true
	}
	return exitErr.ExitCode(), true
}
