package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askbridge/askbridge/config"
	"github.com/askbridge/askbridge/internal"
	"github.com/askbridge/askbridge/lockdir"
)

var doctorFormat string

// CheckResult represents the result of a single diagnostic check.
type CheckResult struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"` // "pass", "warn", "fail"
	Details     []string `json:"details"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DoctorReport contains all check results and a summary.
type DoctorReport struct {
	Checks  []CheckResult `json:"checks"`
	Summary struct {
		Passed   int `json:"passed"`
		Warnings int `json:"warnings"`
		Failed   int `json:"failed"`
	} `json:"summary"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the prompt setup and lock state",
	Long: `Run diagnostic checks to identify configuration issues, a missing
prompt program, and leftover lock state.

Checks performed:
- Configuration: parses and validates the config file
- Prompt program: verifies the configured program is on PATH
- Runtime directory: checks writability and the bridge status file
- Lock: reports the current holder and whether it is stale
- Audit log: verifies the configured log is appendable`,
	Example: `  # Run all checks
  askbridge doctor

  # Output as JSON
  askbridge doctor --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := DoctorReport{}

		checks := []func() CheckResult{
			checkConfig,
			checkPromptProgram,
			checkRuntimeDir,
			checkLock,
			checkAuditLog,
		}

		for _, check := range checks {
			result := check()
			report.Checks = append(report.Checks, result)
			switch result.Status {
			case "pass":
				report.Summary.Passed++
			case "warn":
				report.Summary.Warnings++
			case "fail":
				report.Summary.Failed++
			}
		}

		if doctorFormat == "json" {
			output, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		}

		printDoctorReport(report)

		// Set exit code based on results
		if report.Summary.Failed > 0 {
			os.Exit(2)
		} else if report.Summary.Warnings > 0 {
			os.Exit(1)
		}

		return nil
	},
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "output format: text or json")
	doctorCmd.Flags().StringVarP(&configFlag, "config", "c", "", "config file path")
	rootCmd.AddCommand(doctorCmd)
}

func checkConfig() CheckResult {
	result := CheckResult{Name: "Configuration", Status: "pass"}

	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		result.Details = append(result.Details, fmt.Sprintf("Config file: %s (not found, using defaults)", path))
	} else {
		result.Details = append(result.Details, fmt.Sprintf("Config file: %s (found)", path))
	}

	cfg, err := config.Load(path)
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Config error: %v", err))
		result.Suggestions = append(result.Suggestions, "Check the file syntax; askbridge expects YAML")
		return result
	}
	if err := cfg.Validate(); err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Config invalid: %v", err))
		return result
	}

	result.Details = append(result.Details, fmt.Sprintf("Prompt program: %s", cfg.PromptProgram))
	result.Details = append(result.Details, fmt.Sprintf("Lock directory: %s", cfg.LockDir))
	result.Details = append(result.Details, fmt.Sprintf("Timing: wait %s, stale after %s, poll %s",
		cfg.WaitTimeout(), cfg.StaleAfter(), cfg.PollInterval()))

	return result
}

func checkPromptProgram() CheckResult {
	result := CheckResult{Name: "Prompt program", Status: "pass"}

	cfg, err := loadConfig()
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, "Could not load config to check the prompt program")
		return result
	}

	if cfg.PromptProgram == config.GatewayTTY {
		result.Details = append(result.Details, "Prompting on the controlling terminal (/dev/tty)")
		if _, err := os.Stat("/dev/tty"); err != nil {
			result.Status = "warn"
			result.Details = append(result.Details, "No controlling terminal right now; prompts fail when detached")
			result.Suggestions = append(result.Suggestions, "Configure an external prompt_program for detached use")
		}
		return result
	}

	path, err := exec.LookPath(cfg.PromptProgram)
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Executable: %s (NOT FOUND in PATH)", cfg.PromptProgram))
		result.Suggestions = append(result.Suggestions,
			fmt.Sprintf("Install %s or check your PATH", cfg.PromptProgram),
			"Or point prompt_program at another askpass-style program")
		return result
	}
	result.Details = append(result.Details, fmt.Sprintf("Executable: %s (found)", path))

	if len(cfg.PromptArgs) > 0 {
		result.Details = append(result.Details, fmt.Sprintf("Arguments: %v", cfg.PromptArgs))
	}

	return result
}

func checkRuntimeDir() CheckResult {
	result := CheckResult{Name: "Runtime directory", Status: "pass"}

	dir := config.RuntimeDir()
	result.Details = append(result.Details, fmt.Sprintf("Runtime directory: %s", dir))

	if _, err := config.EnsureRuntimeDir(); err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Cannot create: %v", err))
		return result
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok\n"), 0600); err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Write probe failed: %v", err))
		return result
	}
	os.Remove(probe)
	result.Details = append(result.Details, "Write probe: ok")

	status := internal.GetStatus(dir)
	result.Details = append(result.Details, fmt.Sprintf("Bridge status: %s", status.Status))
	if status.Status == "prompting" && status.Since != nil {
		result.Details = append(result.Details,
			fmt.Sprintf("Prompting since %s (pid %d)", status.Since.Format(time.RFC3339), status.Pid))
	}

	return result
}

func checkLock() CheckResult {
	result := CheckResult{Name: "Authentication lock", Status: "pass"}

	cfg, err := loadConfig()
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, "Could not load config to locate the lock")
		return result
	}

	locks := lockdir.New(cfg.LockDir, lockdir.WithStaleAfter(cfg.StaleAfter()))
	info, held := locks.Inspect()
	if !held {
		result.Details = append(result.Details, fmt.Sprintf("Lock: %s (free)", cfg.LockDir))
		return result
	}

	result.Details = append(result.Details, fmt.Sprintf("Lock: %s (held)", cfg.LockDir))
	if info.Pid > 0 {
		result.Details = append(result.Details,
			fmt.Sprintf("Holder: pid %d, acquired %s", info.Pid, info.Acquired.Format(time.RFC3339)))
	} else {
		result.Details = append(result.Details, "Holder: unreadable lock record")
	}

	switch {
	case info.Pid > 0 && !info.HolderAlive:
		result.Status = "warn"
		result.Details = append(result.Details, "Holder process is gone; the next request reclaims the lock")
	case info.Stale:
		result.Status = "warn"
		result.Details = append(result.Details, "Lock is stale; the next request reclaims it")
	default:
		result.Details = append(result.Details, "Holder is alive; a prompt is in flight")
	}

	return result
}

func checkAuditLog() CheckResult {
	result := CheckResult{Name: "Audit log", Status: "pass"}

	cfg, err := loadConfig()
	if err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, "Could not load config to check the audit log")
		return result
	}

	if cfg.AuditLog == "" {
		result.Details = append(result.Details, "Audit log: disabled")
		return result
	}

	info, err := os.Stat(cfg.AuditLog)
	switch {
	case os.IsNotExist(err):
		result.Details = append(result.Details, fmt.Sprintf("Audit log: %s (not found, will be created)", cfg.AuditLog))
	case err != nil:
		result.Status = "warn"
		result.Details = append(result.Details, fmt.Sprintf("Audit log error: %v", err))
		return result
	default:
		result.Details = append(result.Details, fmt.Sprintf("Audit log: %s (%s)", cfg.AuditLog, formatBytes(info.Size())))
	}

	probe := filepath.Join(filepath.Dir(cfg.AuditLog), ".askbridge-doctor")
	if err := os.WriteFile(probe, []byte("ok\n"), 0600); err != nil {
		result.Status = "fail"
		result.Details = append(result.Details, fmt.Sprintf("Directory not writable: %v", err))
		return result
	}
	os.Remove(probe)
	result.Details = append(result.Details, "Write probe: ok")

	return result
}

func printDoctorReport(report DoctorReport) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	dim := color.New(color.Faint)

	bold.Println("askbridge doctor")
	fmt.Println("================")
	fmt.Println()

	for _, check := range report.Checks {
		// Status icon
		switch check.Status {
		case "pass":
			green.Print("✓ ")
		case "warn":
			yellow.Print("⚠ ")
		case "fail":
			red.Print("✗ ")
		}

		bold.Println(check.Name)

		for _, detail := range check.Details {
			fmt.Printf("  %s\n", detail)
		}

		if len(check.Suggestions) > 0 {
			fmt.Println()
			dim.Println("  Suggestion:")
			for _, suggestion := range check.Suggestions {
				fmt.Printf("    %s\n", suggestion)
			}
		}

		fmt.Println()
	}

	// Summary
	if report.Summary.Failed > 0 {
		red.Printf("%d checks failed", report.Summary.Failed)
		if report.Summary.Warnings > 0 {
			fmt.Printf(", %d warnings", report.Summary.Warnings)
		}
		fmt.Println()
	} else if report.Summary.Warnings > 0 {
		yellow.Printf("%d warnings\n", report.Summary.Warnings)
	} else {
		green.Printf("All %d checks passed\n", report.Summary.Passed)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
