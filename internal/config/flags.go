// ABOUTME: Command line flags for olimp-control and their precedence over the config file
// ABOUTME: Only flags the user explicitly set override file values

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "OLIMP_CONTROL_CONFIG"

// Flags holds parsed command line values.
type Flags struct {
	ConfigPath    string
	PollFrequency float64
	KeyFile       string
	Timeout       float64
	LogLevel      string
	LogFormat     string
	Version       bool

	fs *pflag.FlagSet
}

// RegisterFlags defines the agent's flags on fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to config file (YAML or TOML)")
	fs.Float64VarP(&f.PollFrequency, "poll-frequency", "f", DefaultPollFrequency.Seconds(), "frequency of server check-in, in seconds")
	fs.StringVarP(&f.KeyFile, "key-file", "k", DefaultKeyFile, "path to key file")
	fs.Float64VarP(&f.Timeout, "timeout", "t", DefaultTimeout.Seconds(), "timeout for API operations, in seconds (0 = none)")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.LogFormat, "log-format", "", "log format: text, json")
	fs.BoolVar(&f.Version, "version", false, "print version and exit")
	return f
}

// ResolveConfigPath picks the config file: --config, then $OLIMP_CONTROL_CONFIG,
// then DefaultConfigFile when it exists. It returns "" when there is none.
func (f *Flags) ResolveConfigPath() string {
	if f.ConfigPath != "" {
		return f.ConfigPath
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Override returns an Override that applies the flags and args.
func (f *Flags) Override(args []string) Override {
	return func(cfg *Config) error { return f.Apply(cfg, args) }
}

// Apply overrides cfg with explicitly set flags and the optional
// positional URL argument.
func (f *Flags) Apply(cfg *Config, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("expected at most one url argument, got %d", len(args))
	}

	if f.fs.Changed("poll-frequency") {
		cfg.Agent.PollFrequency = Seconds(f.PollFrequency)
	}
	if f.fs.Changed("key-file") {
		cfg.Agent.KeyFile = f.KeyFile
	}
	if f.fs.Changed("timeout") {
		cfg.Server.Timeout = Seconds(f.Timeout)
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Logging.Format = f.LogFormat
	}
	if len(args) == 1 {
		cfg.Server.URL = args[0]
	}

	cfg.Server.URL = strings.TrimSuffix(cfg.Server.URL, "/")
	return nil
}
