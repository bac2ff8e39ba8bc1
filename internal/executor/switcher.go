// ABOUTME: Identity switchers that build the child process for a ticket's user
// ABOUTME: su(1) based by default, or direct uid/gid credentials on the child

package executor

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Identity switch methods accepted by NewSwitcher.
const (
	MethodSu         = "su"
	MethodCredential = "credential"
)

// Default paths for the su method.
const (
	DefaultSuPath = "/bin/su"
	DefaultShell  = "/bin/bash"
)

// Switcher builds a process that runs a command interpreter as user. The
// command text is fed to the process's standard input by the caller.
type Switcher interface {
	Command(user string) (*exec.Cmd, error)
}

// NewSwitcher returns the switcher for method.
func NewSwitcher(method, suPath, shell string) (Switcher, error) {
	if shell == "" {
		shell = DefaultShell
	}
	switch method {
	case "", MethodSu:
		if suPath == "" {
			suPath = DefaultSuPath
		}
		return &SuSwitcher{SuPath: suPath, Shell: shell}, nil
	case MethodCredential:
		return &CredentialSwitcher{Shell: shell}, nil
	default:
		return nil, fmt.Errorf("unknown identity switch method %q", method)
	}
}

// SuSwitcher delegates the identity switch to su(1).
type SuSwitcher struct {
	SuPath string
	Shell  string
}

// Command returns `su <user> -c <shell>`.
func (s *SuSwitcher) Command(user string) (*exec.Cmd, error) {
	if err := checkUserName(user); err != nil {
		return nil, err
	}
	return exec.Command(s.SuPath, user, "-c", s.Shell), nil
}

// checkUserName rejects names su would parse as options.
func checkUserName(user string) error {
	if user == "" {
		return errors.New("empty user name")
	}
	if strings.HasPrefix(user, "-") {
		return fmt.Errorf("invalid user name %q", user)
	}
	return nil
}
