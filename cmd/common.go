package cmd

import (
	"github.com/askbridge/askbridge/config"
	"github.com/askbridge/askbridge/lockdir"
	"github.com/askbridge/askbridge/logging"
	"github.com/askbridge/askbridge/prompt"
)

// configFlag is shared by the subcommands that take --config. The root
// command parses no flags, so it always uses the default resolution.
var configFlag string

// loadConfig loads and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the stderr logger at the configured level.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.WithLevel(logging.ParseLevel(cfg.LogLevel)))
}

// newLockManager builds the lock manager with the configured timings.
func newLockManager(cfg *config.Config, logger *logging.Logger) *lockdir.Manager {
	return lockdir.New(cfg.LockDir,
		lockdir.WithWaitTimeout(cfg.WaitTimeout()),
		lockdir.WithStaleAfter(cfg.StaleAfter()),
		lockdir.WithPollInterval(cfg.PollInterval()),
		lockdir.WithLogger(logger.WithComponent("lock")),
	)
}

// newGateway selects the prompt gateway: an external program, or the
// controlling terminal when prompt_program is "tty".
func newGateway(cfg *config.Config, extraArgs []string, logger *logging.Logger) prompt.Gateway {
	if cfg.PromptProgram == config.GatewayTTY {
		return prompt.NewTTYGateway(logger.WithComponent("tty"))
	}
	return prompt.NewExecGateway(cfg.PromptProgram, cfg.PromptArgs, extraArgs, logger.WithComponent("prompt"))
}

// preflight creates the runtime and lock parent directories. Failure
// here is the unrecoverable environment error that aborts startup.
func preflight(cfg *config.Config) (string, error) {
	runtimeDir, err := config.EnsureRuntimeDir()
	if err != nil {
		return "", err
	}
	if err := cfg.EnsureLockParent(); err != nil {
		return "", err
	}
	return runtimeDir, nil
}
