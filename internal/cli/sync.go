package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowguard/flowguard/internal/shipper"
	"github.com/flowguard/flowguard/internal/sink"
)

var (
	syncRoot   string
	syncConfig string
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncRoot, "root", "", "Log root to aggregate (default: ~/.claude)")
	syncCmd.Flags().StringVar(&syncConfig, "config", "", "Path to shipper config YAML (default: ~/.flowguard/shipper.yaml)")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Aggregate logs once and sync them to the destination",
	Long: "Discovers log files under the root, parses and sanitizes their entries, and\n" +
		"ships them to the configured destination in one batch pass. Exit code 1 if\n" +
		"any batch fails.",
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := newLogger(false)
	defer func() { _ = logger.Sync() }()

	cfg, err := shipper.LoadConfig(syncConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid shipper config: %v\n", err)
		os.Exit(exitConfig)
	}
	if syncRoot != "" {
		cfg.Root = syncRoot
	}
	// One-shot runs always queue and drain; the worker pool is for
	// daemon mode.
	cfg.Mode = shipper.ModeBatch

	ctx := context.Background()

	dest, err := sink.BuildDestination(ctx, cfg.Destination, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Destination not usable: %v\n", err)
		os.Exit(exitConfig)
	}

	sh, err := shipper.New(cfg, dest, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid shipper config: %v\n", err)
		os.Exit(exitConfig)
	}

	parsed, err := sh.Aggregate(ctx)
	if err != nil {
		return fmt.Errorf("aggregate logs: %w", err)
	}
	results := sh.Flush(ctx)

	processed, skipped := 0, 0
	failed := false
	for _, r := range results {
		processed += r.EntriesProcessed
		skipped += r.EntriesSkipped
		if !r.Success {
			failed = true
			for _, msg := range r.Errors {
				fmt.Fprintf(os.Stderr, "sync %s: %s\n", r.SyncID, msg)
			}
		}
	}

	fmt.Printf("Parsed %d entries from %s\n", parsed, cfg.Root)
	fmt.Printf("Synced %d to %s (%d batches, %d skipped)\n",
		processed, dest.Name(), len(results), skipped)

	if failed {
		os.Exit(1)
	}
	return nil
}
