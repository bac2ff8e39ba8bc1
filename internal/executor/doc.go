// Package executor runs ticket commands under a local user identity.
//
// The command text is written to the standard input of a shell started as
// the ticket's user; stdout, stderr, the exit code and the wall-clock
// duration are captured. The identity switch is delegated to the host:
//
//   - SuSwitcher runs `su <user> -c <shell>` and relies on su(1) to drop
//     privileges. This is the default and matches how tickets were always run.
//   - CredentialSwitcher starts the shell directly with the user's uid, gid
//     and supplementary groups set on the child process.
//
// Both require the agent to run as root. Execution has no timeout: a
// ticket is a trusted administrative task and the poll loop accepts
// blocking until it finishes.
package executor
