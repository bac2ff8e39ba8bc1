// Package hostinfo reads facts about the local host that the agent reports.
//
// # Machine identity
//
// MachineID hashes the DMI board, chassis and product serial numbers with
// SHA-1. Virtual machines usually expose none of them, in which case the
// hash is taken over the sorted hardware addresses of every network
// interface instead. Reading the serials requires root; without it they
// read as empty and the network fallback is used.
//
// # Uptime
//
// Uptime returns the host's uptime(1) line, or a description built from
// sysinfo(2) when the command is missing.
package hostinfo
