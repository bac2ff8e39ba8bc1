// ABOUTME: Privilege probe for the running process
// ABOUTME: Identity switching and DMI serial reads both need root

package hostinfo

import "golang.org/x/sys/unix"

// IsRoot reports whether the process runs with effective uid 0.
func IsRoot() bool {
	return unix.Geteuid() == 0
}
