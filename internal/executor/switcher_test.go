// ABOUTME: Tests for identity switchers
// ABOUTME: Checks the built command lines and credentials without switching users

package executor

import (
	"errors"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSwitcher(t *testing.T) {
	sw, err := NewSwitcher("", "", "")
	require.NoError(t, err)
	assert.Equal(t, &SuSwitcher{SuPath: DefaultSuPath, Shell: DefaultShell}, sw)

	sw, err = NewSwitcher(MethodSu, "/usr/bin/su", "/bin/sh")
	require.NoError(t, err)
	assert.Equal(t, &SuSwitcher{SuPath: "/usr/bin/su", Shell: "/bin/sh"}, sw)

	sw, err = NewSwitcher(MethodCredential, "", "")
	require.NoError(t, err)
	assert.IsType(t, &CredentialSwitcher{}, sw)

	_, err = NewSwitcher("sudo", "", "")
	assert.Error(t, err)
}

func TestSuSwitcher_Command(t *testing.T) {
	sw := &SuSwitcher{SuPath: "/bin/su", Shell: "/bin/bash"}

	cmd, err := sw.Command("svc")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/su", "svc", "-c", "/bin/bash"}, cmd.Args)
}

func TestSuSwitcher_RejectsOptionLikeNames(t *testing.T) {
	sw := &SuSwitcher{SuPath: "/bin/su", Shell: "/bin/bash"}

	for _, name := range []string{"", "-", "-l", "--login"} {
		_, err := sw.Command(name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestCredentialSwitcher_Command(t *testing.T) {
	sw := &CredentialSwitcher{
		Shell: "/bin/sh",
		Lookup: func(name string) (*user.User, error) {
			return &user.User{Uid: "1001", Gid: "1002", Username: name, HomeDir: "/nonexistent/home"}, nil
		},
	}

	cmd, err := sw.Command("svc")
	require.NoError(t, err)

	assert.Equal(t, []string{"/bin/sh"}, cmd.Args)
	require.NotNil(t, cmd.SysProcAttr)
	require.NotNil(t, cmd.SysProcAttr.Credential)
	assert.Equal(t, uint32(1001), cmd.SysProcAttr.Credential.Uid)
	assert.Equal(t, uint32(1002), cmd.SysProcAttr.Credential.Gid)
	assert.Contains(t, cmd.Env, "USER=svc")
	assert.Contains(t, cmd.Env, "HOME=/nonexistent/home")
	assert.Equal(t, "/", cmd.Dir)
}

func TestCredentialSwitcher_UnknownUser(t *testing.T) {
	sw := &CredentialSwitcher{
		Shell: "/bin/sh",
		Lookup: func(name string) (*user.User, error) {
			return nil, user.UnknownUserError(name)
		},
	}

	_, err := sw.Command("ghost")
	require.Error(t, err)
	var unknown user.UnknownUserError
	assert.True(t, errors.As(err, &unknown))
}

func TestCredentialSwitcher_BadUID(t *testing.T) {
	sw := &CredentialSwitcher{
		Shell: "/bin/sh",
		Lookup: func(name string) (*user.User, error) {
			return &user.User{Uid: "abc", Gid: "0", Username: name}, nil
		},
	}

	_, err := sw.Command("svc")
	assert.Error(t, err)
}
