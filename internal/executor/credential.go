// ABOUTME: Identity switch by setting uid, gid and groups on the child process
// ABOUTME: Builds a login-like environment from the passwd entry

package executor

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// CredentialSwitcher starts Shell directly with the target user's
// credentials.
type CredentialSwitcher struct {
	Shell string
	// Lookup resolves user names; defaults to user.Lookup.
	Lookup func(name string) (*user.User, error)
}

// Command returns Shell running as name.
func (s *CredentialSwitcher) Command(name string) (*exec.Cmd, error) {
	if err := checkUserName(name); err != nil {
		return nil, err
	}

	lookup := s.Lookup
	if lookup == nil {
		lookup = user.Lookup
	}
	u, err := lookup(name)
	if err != nil {
		return nil, fmt.Errorf("looking up user %q: %w", name, err)
	}

	cred, err := credentialFor(u)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(s.Shell)
	cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	cmd.Env = []string{
		"HOME=" + u.HomeDir,
		"USER=" + u.Username,
		"LOGNAME=" + u.Username,
		"SHELL=" + s.Shell,
		"PATH=" + defaultPath,
	}
	if fi, err := os.Stat(u.HomeDir); err == nil && fi.IsDir() {
		cmd.Dir = u.HomeDir
	} else {
		cmd.Dir = "/"
	}
	return cmd, nil
}

func credentialFor(u *user.User) (*syscall.Credential, error) {
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing uid of %q: %w", u.Username, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing gid of %q: %w", u.Username, err)
	}

	cred := &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}

	groupIDs, err := u.GroupIds()
	if err != nil {
		return cred, nil
	}
	for _, g := range groupIDs {
		id, err := strconv.ParseUint(g, 10, 32)
		if err != nil {
			continue
		}
		cred.Groups = append(cred.Groups, uint32(id))
	}
	return cred, nil
}
