package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/askbridge/askbridge/bridge"
	"github.com/askbridge/askbridge/internal"
)

// Version is set by main.go from build flags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "askbridge [prompt program arguments]",
	Short: "Askpass bridge between a privilege broker and the user",
	Long: `Askbridge sits between a privilege-elevation broker and the person at
the keyboard. It reads password requests as JSON lines on stdin, shows
each one through an external prompt program while holding a per-user
lock, and writes exactly one JSON response line per request to stdout.

Arguments are handed to the prompt program untouched; askbridge itself
interprets no flags. Configuration comes from the config file and
ASKBRIDGE_* environment variables.`,
	Args: cobra.ArbitraryArgs,
	// The broker owns the argument vector: everything that is not a help
	// token belongs to the prompt program, so cobra must not eat flags.
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if wantsHelp(args) {
			return cmd.Help()
		}
		return runBridge(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:   "help",
		Short: "Print usage",
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_ = rootCmd.Help()
		},
	})
}

// wantsHelp reports whether any argument is a help token. They are
// honoured in any position so a misassembled broker command line prints
// usage instead of starting a silent loop.
func wantsHelp(args []string) bool {
	for _, a := range args {
		switch a {
		case "h", "help", "-h", "-help", "--help":
			return true
		}
	}
	return false
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

func runBridge(cmd *cobra.Command, extraArgs []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Debugf("effective configuration:\n%s", cfg.PrettyYAML())

	// The lock path's parent is the one environment dependency worth
	// dying for: without it no request can ever be served.
	runtimeDir, err := preflight(cfg)
	if err != nil {
		return err
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger.WithComponent("bridge")),
		bridge.WithRuntimeDir(runtimeDir),
	}
	if cfg.AuditLog != "" {
		audit, err := internal.NewAuditLogger(cfg.AuditLog, "bridge")
		if err != nil {
			logger.Warnf("audit log unavailable: %v", err)
		} else {
			defer audit.Close()
			opts = append(opts, bridge.WithAudit(audit))
		}
	}

	b := bridge.New(os.Stdin, os.Stdout,
		newLockManager(cfg, logger),
		newGateway(cfg, extraArgs, logger),
		opts...)
	return b.Run(cmd.Context())
}
