// Package config handles configuration loading for olimp-control.
//
// # Overview
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults (see Default)
//  2. An optional YAML or TOML file (TOML when the name ends in .toml)
//  3. Command line flags that were explicitly set, and the positional URL
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from --config
//  2. Path from OLIMP_CONTROL_CONFIG environment variable
//  3. /etc/olimp-control/config.yaml, if it exists
//
// Without a file the defaults and flags alone are used.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	agent:
//	  key_file: "${OLIMP_KEY_FILE}"
//
// # Durations
//
// Durations use time.ParseDuration syntax ("20s", "1m30s"). A bare number
// is read as seconds, matching the command line flags.
//
// # Configuration Sections
//
//	server:
//	  url: "https://ctrl.lmio.lt/olimp/api"
//	  timeout: "20s"            # per request, 0 = unbounded
//
//	agent:
//	  poll_frequency: "60s"
//	  key_file: "/etc/olimp-control/key"
//	  machine_id: ""            # override the derived machine id
//	  replay_window: "0s"       # skip re-issued ticket ids, 0 = off
//
//	executor:
//	  method: "su"              # su, credential
//	  su_path: "/bin/su"
//	  shell: "/bin/bash"
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text, json
//
// # Key File
//
// ReadKey returns the shared secret: the key file's contents with
// surrounding whitespace removed.
package config
