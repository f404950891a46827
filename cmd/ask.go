package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askbridge/askbridge/bridge"
	"github.com/askbridge/askbridge/internal"
	"github.com/askbridge/askbridge/protocol"
)

var (
	askPrompt  string
	askMessage string
)

var askCmd = &cobra.Command{
	Use:   "ask [-- prompt program arguments]",
	Short: "Run a single prompt flow and print the response line",
	Long: `Sends one password request through the regular pipeline (lock, prompt
program, response encoding) and prints the response line to stdout.
Useful for checking a prompt program setup without a broker attached.`,
	Example: `  # Prompt with the configured program and print the response
  askbridge ask

  # Custom label and context message
  askbridge ask --prompt "Passphrase:" --message "Unlocking the vault"`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askPrompt, "prompt", "", "prompt label shown to the user")
	askCmd.Flags().StringVar(&askMessage, "message", "", "context message shown with the prompt")
	askCmd.Flags().StringVarP(&configFlag, "config", "c", "", "config file path")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	runtimeDir, err := preflight(cfg)
	if err != nil {
		return err
	}

	line, err := json.Marshal(protocol.Request{
		Action:  protocol.ActionRequestPassword,
		Prompt:  askPrompt,
		Message: askMessage,
	})
	if err != nil {
		return err
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger.WithComponent("bridge")),
		bridge.WithRuntimeDir(runtimeDir),
	}
	if cfg.AuditLog != "" {
		audit, err := internal.NewAuditLogger(cfg.AuditLog, "ask")
		if err != nil {
			logger.Warnf("audit log unavailable: %v", err)
		} else {
			defer audit.Close()
			opts = append(opts, bridge.WithAudit(audit))
		}
	}

	b := bridge.New(strings.NewReader(string(line)+"\n"), os.Stdout,
		newLockManager(cfg, logger),
		newGateway(cfg, args, logger),
		opts...)
	return b.Run(cmd.Context())
}
