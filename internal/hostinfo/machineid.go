// ABOUTME: Stable machine identifier derived from DMI serials or NIC hardware addresses
// ABOUTME: Reads through fs.FS so the derivation can be exercised against fixture trees

package hostinfo

import (
	"crypto/sha1" //nolint:gosec // identifier hash shared with the control server
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

const (
	dmiDir        = "sys/devices/virtual/dmi/id"
	netAddrGlob   = "sys/class/net/*/address"
	serialBoard   = "board_serial"
	serialChassis = "chassis_serial"
	serialProd    = "product_serial"
)

// ErrNoIdentifiers is returned when neither DMI serials nor network
// addresses are readable.
var ErrNoIdentifiers = errors.New("no hardware identifiers found")

// MachineID derives the identifier of the running host.
func MachineID() (string, error) {
	return MachineIDFS(os.DirFS("/"))
}

// MachineIDFS derives the identifier from a filesystem rooted at "/".
func MachineIDFS(root fs.FS) (string, error) {
	var serials strings.Builder
	for _, name := range []string{serialBoard, serialChassis, serialProd} {
		serials.WriteString(readTrimmed(root, path.Join(dmiDir, name)))
	}
	if serials.Len() > 0 {
		return hashHex([]byte(serials.String())), nil
	}

	// Probably a VM.
	macs, err := hardwareAddresses(root)
	if err != nil {
		return "", err
	}
	return hashHex(macs), nil
}

// readTrimmed returns the trimmed file contents, or "" if unreadable.
func readTrimmed(root fs.FS, name string) string {
	b, err := fs.ReadFile(root, name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// hardwareAddresses reproduces `cat /sys/class/net/*/address | sort`.
func hardwareAddresses(root fs.FS) ([]byte, error) {
	files, err := fs.Glob(root, netAddrGlob)
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	var lines []string
	for _, f := range files {
		b, err := fs.ReadFile(root, f)
		if err != nil {
			continue
		}
		lines = append(lines, strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")...)
	}
	if len(lines) == 0 {
		return nil, ErrNoIdentifiers
	}

	sort.Strings(lines)
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

func hashHex(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
