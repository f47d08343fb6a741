package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/evanofslack/cloudflare-ddns/internal/config"
	"github.com/evanofslack/cloudflare-ddns/internal/history"
	"github.com/evanofslack/cloudflare-ddns/internal/ipwatch"
	"github.com/evanofslack/cloudflare-ddns/internal/logger"
	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider/cloudflare"
	"github.com/evanofslack/cloudflare-ddns/internal/reconcile"
	"github.com/evanofslack/cloudflare-ddns/internal/zone"
)

type options struct {
	configPath string
	once       bool
	dryRun     bool
	logLevel   string
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:     "cloudflare-ddns",
		Short:   "Keep Cloudflare A records pointed at this host's public IPv4 address",
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Example: "  cloudflare-ddns --config /etc/cloudflare-ddns/config.yaml\n  cloudflare-ddns --once --dry-run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts.once)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	root.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log planned record updates without applying them")

	root.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Print the most recent update applied to each record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return printHistory(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("cloudflare-ddns", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	logger.Configure("info", "prod")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	if changed["dry-run"] {
		cfg.Reconcile.DryRun = opts.dryRun
	}
	if changed["log-level"] {
		cfg.Log.Level = opts.logLevel
	}

	logger.Configure(cfg.Log.Level, cfg.Log.Env)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, once bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	zones, err := cfg.ZoneIDs()
	if err != nil {
		return err
	}

	m := metrics.New(true)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hs, err := history.New(cfg.HistoryPath, m)
	if err != nil {
		return fmt.Errorf("initialize update history: %w", err)
	}
	defer hs.Close()

	cf, err := cloudflare.New(cfg.DNS, httpClient, m)
	if err != nil {
		return fmt.Errorf("initialize DNS provider: %w", err)
	}

	watcher, err := ipwatch.New(ctx, cfg.IP.Endpoint, ipwatch.NewHTTPFetcher(httpClient, m))
	if err != nil {
		return fmt.Errorf("initialize public IP watcher: %w", err)
	}

	engine := reconcile.NewEngine(watcher, cf, hs, cfg, m)

	if once {
		return performCycle(ctx, engine, zones, m)
	}

	var server *http.Server
	if cfg.Metrics.IsEnabled() {
		server = startMetricsServer(cfg.Metrics.Address, m)
	}

	slog.Info("Starting cloudflare-ddns service",
		"zones", len(zones),
		"interval", cfg.SyncInterval,
		"endpoint", watcher.Endpoint(),
		"dry_run", cfg.Reconcile.DryRun)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go runCycleLoop(ctx, wg, engine, zones, m, cfg.SyncInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	if server != nil {
		shutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelServer()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	wg.Wait()
	slog.Info("Service shutdown complete")
	return nil
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return server
}

func runCycleLoop(ctx context.Context, wg *sync.WaitGroup, engine reconcile.Engine, zones []zone.ID, m *metrics.Metrics, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := performCycle(ctx, engine, zones, m); err != nil {
			slog.Error("Cycle failed", "error", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping cycle loop")
			return
		}
	}
}

func performCycle(ctx context.Context, engine reconcile.Engine, zones []zone.ID, m *metrics.Metrics) error {
	slog.Debug("Starting cycle")
	start := time.Now()
	defer func() {
		m.SetCycleDuration(time.Since(start))
	}()

	results, err := engine.RunCycle(ctx, zones)
	if err != nil {
		m.IncCycleRun("failure")
		return err
	}
	if !results.Changed {
		m.IncCycleRun("noop")
		return nil
	}

	slog.Info("Cycle completed",
		"ip", results.IP,
		"updated", len(results.Updated),
		"unchanged", results.Unchanged,
		"skipped", results.Skipped,
		"invalid", len(results.Invalid),
		"failures", len(results.Failures))

	if len(results.Failures) > 0 {
		m.IncCycleRun("failure")
	} else {
		m.IncCycleRun("success")
	}
	if results.Committed {
		m.SetLastSync(time.Now())
	}
	return nil
}

func printHistory(ctx context.Context, cfg *config.Config) error {
	hs, err := history.New(cfg.HistoryPath, metrics.New(false))
	if err != nil {
		return fmt.Errorf("open update history: %w", err)
	}
	defer hs.Close()

	entries, err := hs.Recent(ctx)
	if err != nil {
		return fmt.Errorf("read update history: %w", err)
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%s -> %s\n",
			time.Unix(e.AppliedAt, 0).Format(time.RFC3339),
			e.Zone,
			e.After.Name,
			e.Before.Data,
			e.After.Data)
	}
	return nil
}
