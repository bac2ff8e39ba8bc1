// ABOUTME: Uptime fallback for platforms without sysinfo(2)
// ABOUTME: Reports "unknown" when the uptime command is also missing

//go:build !linux

package hostinfo

func sysinfoUptime() string { return "unknown" }
