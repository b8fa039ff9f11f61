package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/internal/daemon"
	"github.com/opsfab/opsfab/telemetry"
)

var (
	daemonInterval    time.Duration
	daemonMetricsPort int
	daemonRegion      string
	daemonDataDir     string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the continuous inventory refresh daemon",
	Long: `Run opsfab in daemon mode, refreshing the local instance inventory
at a fixed interval and exporting metrics.

Endpoints:
- Prometheus metrics on /metrics
- Health status on /health`,
	Example: `  opsfab daemon                       # Refresh every 5 minutes
  opsfab daemon --interval 1m         # Refresh every minute
  opsfab daemon --metrics-port 9090   # Custom metrics port
  opsfab daemon --region us-west-2    # Specific region`,
	RunE: runDaemonCmd,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 5*time.Minute, "Inventory refresh interval")
	daemonCmd.Flags().IntVar(&daemonMetricsPort, "metrics-port", 2112, "Metrics HTTP server port")
	daemonCmd.Flags().StringVar(&daemonRegion, "region", "", "AWS region (defaults to configured region)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	region := daemonRegion
	if region == "" {
		region = cfg.Region
	}

	shutdown, err := telemetry.InitOTEL(cmd.Context(), telemetry.Config{ServiceName: "opsfab-daemon"})
	if err != nil {
		log.Warn().Err(err).Msg("telemetry export disabled")
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	d, err := daemon.New(cmd.Context(), daemon.Config{
		Interval: daemonInterval,
		Region:   region,
		DataDir:  daemonDataDir,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer func() { _ = d.Close() }()

	fmt.Printf("opsfab daemon starting (region %s, interval %s)\n", region, daemonInterval)
	fmt.Printf("metrics: http://localhost:%d/metrics\n", daemonMetricsPort)
	fmt.Printf("health:  http://localhost:%d/health\n", daemonMetricsPort)

	var g run.Group

	g.Add(run.SignalHandler(cmd.Context(), syscall.SIGTERM, syscall.SIGINT, os.Interrupt))

	loopCtx, loopCancel := context.WithCancel(cmd.Context())
	g.Add(func() error {
		return d.Run(loopCtx)
	}, func(error) {
		loopCancel()
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", daemonMetricsPort),
		Handler:           daemonMux(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	err = g.Run()
	if err != nil && !isShutdownErr(err) {
		return fmt.Errorf("daemon error: %w", err)
	}
	fmt.Println("daemon stopped")
	return nil
}

// daemonMux serves metrics and health for the refresh loop
func daemonMux(d *daemon.Daemon) *http.ServeMux {
	mux := http.NewServeMux()

	if telemetry.PrometheusRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(
			telemetry.PrometheusRegistry,
			promhttp.HandlerOpts{},
		))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.Health())
	})

	return mux
}

// isShutdownErr reports whether err is part of a clean stop
func isShutdownErr(err error) bool {
	var sig run.SignalError
	return errors.As(err, &sig) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, http.ErrServerClosed)
}
