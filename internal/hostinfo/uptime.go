// ABOUTME: Uptime description sent with every ping
// ABOUTME: Prefers the uptime(1) line and falls back to sysinfo(2)

package hostinfo

import (
	"context"
	"os/exec"
	"strings"
)

// Uptime describes how long the host has been up.
func Uptime(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "uptime").Output()
	if err == nil {
		if line := strings.TrimSpace(string(out)); line != "" {
			return line
		}
	}
	return sysinfoUptime()
}
