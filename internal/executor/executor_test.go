// ABOUTME: Tests for ticket execution
// ABOUTME: Uses a shell switcher that records the requested user instead of switching

package executor

import (
	"bytes"
	"errors"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmio/olimp-control/internal/protocol"
)

// shellSwitcher runs /bin/sh as the current user and remembers who was asked for.
type shellSwitcher struct {
	users []string
	err   error
	path  string
}

func (s *shellSwitcher) Command(user string) (*exec.Cmd, error) {
	s.users = append(s.users, user)
	if s.err != nil {
		return nil, s.err
	}
	path := s.path
	if path == "" {
		path = "/bin/sh"
	}
	return exec.Command(path), nil
}

func newTestExecutor(sw Switcher) (*Executor, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(sw, slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestExecute_Echo(t *testing.T) {
	sw := &shellSwitcher{}
	ex, _ := newTestExecutor(sw)

	res := ex.Execute(&protocol.Ticket{ID: "t1", Command: "echo hi", RunAs: "nobody"})

	assert.Equal(t, "t1", res.TicketID)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hi\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)
	assert.GreaterOrEqual(t, res.DurationSeconds(), 0.0)
	assert.Equal(t, []string{"nobody"}, sw.users)
}

func TestExecute_NonZeroExitWithStderr(t *testing.T) {
	ex, _ := newTestExecutor(&shellSwitcher{})

	res := ex.Execute(&protocol.Ticket{
		ID:      "t2",
		Command: "echo before\necho oops >&2\nexit 3\necho after\n",
		RunAs:   "nobody",
	})

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "before\n", string(res.Stdout))
	assert.Equal(t, "oops\n", string(res.Stderr))
}

func TestExecute_MultilineScriptFromStdin(t *testing.T) {
	ex, _ := newTestExecutor(&shellSwitcher{})

	res := ex.Execute(&protocol.Ticket{
		ID:      "t3",
		Command: "x=41\nx=$((x+1))\necho \"$x\"",
		RunAs:   "svc",
	})

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "42\n", string(res.Stdout))
}

func TestExecute_KilledBySignal(t *testing.T) {
	ex, _ := newTestExecutor(&shellSwitcher{})

	res := ex.Execute(&protocol.Ticket{ID: "t4", Command: "kill -TERM $$", RunAs: "svc"})

	assert.Equal(t, -15, res.ExitCode)
}

func TestExecute_SwitcherFailure(t *testing.T) {
	ex, logs := newTestExecutor(&shellSwitcher{err: errors.New("no such user")})

	res := ex.Execute(&protocol.Ticket{ID: "t5", Command: "true", RunAs: "ghost"})

	assert.Equal(t, ExitSpawnFailure, res.ExitCode)
	assert.Empty(t, res.Stdout)
	assert.Contains(t, string(res.Stderr), "no such user")
	assert.Contains(t, logs.String(), "ticket could not be started")
}

func TestExecute_MissingInterpreter(t *testing.T) {
	ex, _ := newTestExecutor(&shellSwitcher{path: "/nonexistent/shell"})

	res := ex.Execute(&protocol.Ticket{ID: "t6", Command: "true", RunAs: "svc"})

	assert.Equal(t, ExitSpawnFailure, res.ExitCode)
	assert.Contains(t, string(res.Stderr), "/nonexistent/shell")
}

func TestExitCode(t *testing.T) {
	code, exited := exitCode(nil)
	assert.Equal(t, 0, code)
	assert.True(t, exited)

	code, exited = exitCode(errors.New("boom"))
	assert.Equal(t, ExitSpawnFailure, code)
	assert.False(t, exited)

	err := exec.Command("/bin/sh", "-c", "exit 7").Run()
	require.Error(t, err)
	code, exited = exitCode(err)
	assert.Equal(t, 7, code)
	assert.True(t, exited)
}
