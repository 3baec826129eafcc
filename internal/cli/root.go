// Package cli wires the governance pipeline into the flowguard
// command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes, after sysexits: 75 temp failure (approval pending),
// 77 permission denied (policy block / human denial), 78 config.
const (
	exitPending = 75
	exitBlocked = 77
	exitConfig  = 78
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "flowguard",
	Short: "Governance and audit pipeline for AI-assisted workflows",
	Long: "Enforces policy on AI-assisted workflows before execution, gates risky runs\n" +
		"behind human approval, writes a hash-chained audit trail, and ships\n" +
		"sanitized assistant logs to durable destinations.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging to stderr")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the command logger. One-shot commands stay quiet
// unless --verbose; daemons always log.
func newLogger(daemon bool) *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	if daemon {
		logger, err := zap.NewProduction()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}
