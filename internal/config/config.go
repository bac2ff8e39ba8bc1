// ABOUTME: Configuration loading and parsing for olimp-control
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/lmio/olimp-control/internal/executor"
)

// Defaults used when neither the file nor the flags say otherwise.
const (
	DefaultURL           = "https://ctrl.lmio.lt/olimp/api"
	DefaultKeyFile       = "/etc/olimp-control/key"
	DefaultConfigFile    = "/etc/olimp-control/config.yaml"
	DefaultPollFrequency = 60 * time.Second
	DefaultTimeout       = 20 * time.Second
)

// Config represents the complete olimp-control configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Agent    AgentConfig    `yaml:"agent" toml:"agent"`
	Executor ExecutorConfig `yaml:"executor" toml:"executor"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the control server connection settings
type ServerConfig struct {
	URL     string        `yaml:"url" toml:"url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// AgentConfig holds the poll loop and identity settings
type AgentConfig struct {
	PollFrequency time.Duration `yaml:"-" toml:"-"`
	ReplayWindow  time.Duration `yaml:"-" toml:"-"`
	KeyFile       string        `yaml:"key_file" toml:"key_file"`
	MachineID     string        `yaml:"machine_id" toml:"machine_id"`

	// Raw string values for unmarshaling
	PollFrequencyRaw string `yaml:"poll_frequency" toml:"poll_frequency"`
	ReplayWindowRaw  string `yaml:"replay_window" toml:"replay_window"`
}

// ExecutorConfig selects how tickets switch to their user
type ExecutorConfig struct {
	Method string `yaml:"method" toml:"method"`
	SuPath string `yaml:"su_path" toml:"su_path"`
	Shell  string `yaml:"shell" toml:"shell"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     DefaultURL,
			Timeout: DefaultTimeout,
		},
		Agent: AgentConfig{
			PollFrequency: DefaultPollFrequency,
			KeyFile:       DefaultKeyFile,
		},
		Executor: ExecutorConfig{
			Method: executor.MethodSu,
			SuPath: executor.DefaultSuPath,
			Shell:  executor.DefaultShell,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Override adjusts a loaded configuration before it is validated.
type Override func(*Config) error

// Load reads a configuration file over the defaults, applies overrides in
// order, and validates the result. An empty path yields the defaults.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Server.URL = strings.TrimSuffix(cfg.Server.URL, "/")
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must be http or https, got %q", c.Server.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url has no host: %q", c.Server.URL)
	}

	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Agent.PollFrequency <= 0 {
		return fmt.Errorf("agent.poll_frequency must be positive")
	}
	if c.Agent.ReplayWindow < 0 {
		return fmt.Errorf("agent.replay_window must not be negative")
	}
	if c.Agent.KeyFile == "" {
		return fmt.Errorf("agent.key_file is required")
	}

	switch c.Executor.Method {
	case "", executor.MethodSu, executor.MethodCredential:
	default:
		return fmt.Errorf("executor.method must be %q or %q, got %q",
			executor.MethodSu, executor.MethodCredential, c.Executor.Method)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.TimeoutRaw != "" {
		cfg.Server.Timeout, err = parseDuration(cfg.Server.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Server.TimeoutRaw, err)
		}
	}

	if cfg.Agent.PollFrequencyRaw != "" {
		cfg.Agent.PollFrequency, err = parseDuration(cfg.Agent.PollFrequencyRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_frequency %q: %w", cfg.Agent.PollFrequencyRaw, err)
		}
	}

	if cfg.Agent.ReplayWindowRaw != "" {
		cfg.Agent.ReplayWindow, err = parseDuration(cfg.Agent.ReplayWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing replay_window %q: %w", cfg.Agent.ReplayWindowRaw, err)
		}
	}

	return nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Seconds(secs), nil
}

// Seconds converts fractional seconds to a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
