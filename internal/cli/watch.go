package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/flowguard/flowguard/internal/shipper"
	"github.com/flowguard/flowguard/internal/sink"
)

var (
	watchRoot        string
	watchConfig      string
	watchMetricsAddr string
	watchPoll        bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchRoot, "root", "", "Log root to watch (default: ~/.claude)")
	watchCmd.Flags().StringVar(&watchConfig, "config", "", "Path to shipper config YAML (default: ~/.flowguard/shipper.yaml)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", ":9464", "Prometheus listen address, empty disables")
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Poll for changes instead of using inotify")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously aggregate and sync logs",
	Long: "Runs the aggregation pipeline as a daemon: an initial pass over existing\n" +
		"files, a filesystem tailer for new and growing ones, and a batch timer that\n" +
		"drains the sync queue. SIGINT/SIGTERM flush outstanding work before exit.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger(true)
	defer func() { _ = logger.Sync() }()

	cfg, err := shipper.LoadConfig(watchConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid shipper config: %v\n", err)
		os.Exit(exitConfig)
	}
	if watchRoot != "" {
		cfg.Root = watchRoot
	}
	if watchPoll {
		cfg.Poll = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var metricsSrv *http.Server
	if watchMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(sh.Registry(), promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: watchMetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "warning: metrics endpoint failed: %v\n", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nFlushing and shutting down...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "flowguard watching %s (%s mode, destination %s)\n",
		cfg.Root, cfg.Mode, dest.Name())
	if watchMetricsAddr != "" {
		fmt.Fprintf(os.Stderr, "metrics on %s/metrics\n", watchMetricsAddr)
	}

	runErr := sh.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	return runErr
}
