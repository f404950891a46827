// Package config loads bridge configuration from a YAML file and the
// environment. The bridge takes no flags of its own, so this is the
// only way to tune it.
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// GatewayTTY is the prompt_program value selecting the built-in
// terminal prompt instead of an external program.
const GatewayTTY = "tty"

// Config holds runtime configuration for the bridge.
type Config struct {
	PromptProgram string   `yaml:"prompt_program"`
	PromptArgs    []string `yaml:"prompt_args"`
	LogLevel      string   `yaml:"log_level"`
	LockDir       string   `yaml:"lock_dir"`
	AuditLog      string   `yaml:"audit_log"`

	WaitTimeoutMs  int `yaml:"wait_timeout_ms"`
	StaleAfterMs   int `yaml:"stale_after_ms"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// Default returns a baseline configuration.
func Default() Config {
	return Config{
		LogLevel:       "info",
		WaitTimeoutMs:  5000,
		StaleAfterMs:   30000,
		PollIntervalMs: 100,
	}
}

// Load reads configuration from a YAML file. A missing file falls back
// to defaults; environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return &cfg, nil
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("ASKBRIDGE_PROMPT"); v != "" {
		c.PromptProgram = v
	}
	if v := os.Getenv("ASKBRIDGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ASKBRIDGE_LOCK_DIR"); v != "" {
		c.LockDir = v
	}
	if v := os.Getenv("ASKBRIDGE_AUDIT_LOG"); v != "" {
		c.AuditLog = v
	}
}

// normalize fills computed defaults that depend on the environment.
func (c *Config) normalize() {
	if c.PromptProgram == "" {
		if v := os.Getenv("SSH_ASKPASS"); v != "" {
			c.PromptProgram = v
		} else {
			c.PromptProgram = "ssh-askpass"
		}
	}
	if c.LockDir == "" {
		c.LockDir = filepath.Join(RuntimeDir(), "lock")
	}
}

// Validate performs simple sanity checks on the configuration.
func (c *Config) Validate() error {
	if c.WaitTimeoutMs < 0 {
		return errors.New("config: wait_timeout_ms must not be negative")
	}
	if c.StaleAfterMs <= 0 {
		return errors.New("config: stale_after_ms must be positive")
	}
	if c.PollIntervalMs <= 0 {
		return errors.New("config: poll_interval_ms must be positive")
	}
	if c.PromptProgram == "" {
		return errors.New("config: prompt_program required")
	}
	return nil
}

// WaitTimeout returns the lock acquisition budget.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMs) * time.Millisecond
}

// StaleAfter returns the lock staleness threshold, which also bounds
// each prompt invocation.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMs) * time.Millisecond
}

// PollInterval returns the lock retry cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// PrettyYAML renders the configuration as YAML for diagnostics.
func (c Config) PrettyYAML() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", c)
	}
	return string(out)
}

// DefaultPath returns the configuration file the bridge reads when
// ASKBRIDGE_CONFIG does not name one.
func DefaultPath() string {
	if v := os.Getenv("ASKBRIDGE_CONFIG"); v != "" {
		return v
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "askbridge", "config.yaml")
}

// RuntimeDir returns the per-user directory holding the lock, the
// status file and the default audit log. XDG_RUNTIME_DIR is already
// private to the user; the TempDir fallback gets a uid-derived suffix
// so users sharing /tmp cannot collide.
func RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "askbridge")
	}
	sum := sha256.Sum256([]byte(strconv.Itoa(os.Getuid())))
	return filepath.Join(os.TempDir(), fmt.Sprintf("askbridge-%x", sum[:6]))
}

// EnsureRuntimeDir creates the runtime directory with owner-only
// permissions and returns its path.
func EnsureRuntimeDir() (string, error) {
	dir := RuntimeDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("config: create runtime dir %q: %w", dir, err)
	}
	return dir, nil
}

// EnsureLockParent creates the directory that will contain the lock.
// It must exist before the first acquisition attempt.
func (c *Config) EnsureLockParent() error {
	parent := filepath.Dir(c.LockDir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return fmt.Errorf("config: create lock parent %q: %w", parent, err)
	}
	return nil
}
