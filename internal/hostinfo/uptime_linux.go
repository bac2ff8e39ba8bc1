// ABOUTME: sysinfo(2) based uptime description for Linux hosts
// ABOUTME: Used when the uptime command is not installed

//go:build linux

package hostinfo

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Load averages in sysinfo are fixed point with 16 fractional bits.
const loadScale = 1 << 16

func sysinfoUptime() string {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return "unknown"
	}
	up := time.Duration(info.Uptime) * time.Second
	return fmt.Sprintf("up %s, load average: %.2f, %.2f, %.2f",
		up,
		float64(info.Loads[0])/loadScale,
		float64(info.Loads[1])/loadScale,
		float64(info.Loads[2])/loadScale,
	)
}
