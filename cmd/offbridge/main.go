package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/anvil/offbridge/internal/breaker"
	"github.com/anvil/offbridge/internal/bridge"
	"github.com/anvil/offbridge/internal/bus"
	"github.com/anvil/offbridge/internal/catalog"
	"github.com/anvil/offbridge/internal/classify"
	"github.com/anvil/offbridge/internal/config"
	"github.com/anvil/offbridge/internal/cron"
	"github.com/anvil/offbridge/internal/delegate"
	"github.com/anvil/offbridge/internal/executor"
	"github.com/anvil/offbridge/internal/gateway"
	otelPkg "github.com/anvil/offbridge/internal/otel"
	"github.com/anvil/offbridge/internal/persistence"
	"github.com/anvil/offbridge/internal/telemetry"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.3-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

DAEMON MODE (default):
  %s                          Start the offload bridge daemon

SUBCOMMANDS:
  %s status                   Show bridge health (/healthz)

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  OFFBRIDGE_HOME              Data directory (default: ~/.offbridge)
  OFFBRIDGE_DELEGATE_URL      Delegate WebSocket endpoint
  OFFBRIDGE_DELEGATE_TOKEN    Delegate auth token
  OFFBRIDGE_BIND_ADDR         Gateway bind address
`)
}

func main() {
	loadDotEnv(".env")

	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		switch strings.ToLower(strings.TrimSpace(args[0])) {
		case "help", "-h", "--help":
			printUsage()
			os.Exit(0)
		case "status":
			os.Exit(runStatusCommand(ctx, args[1:]))
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	if err := runDaemon(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "offbridge: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, false)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("offbridge %s (delegate %s, gateway %s)\n", Version, cfg.Delegate.URL, cfg.BindAddr)
	}
	logger.Info("starting offload bridge",
		"version", Version,
		"config_fingerprint", cfg.Fingerprint(),
	)

	otelProvider, err := otelPkg.Init(ctx, otelPkg.Config{
		Enabled:     cfg.OTel.Enabled,
		Exporter:    cfg.OTel.Exporter,
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.OTel.ServiceName,
		SampleRate:  cfg.OTel.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(shutdownCtx)
	}()

	instruments, err := otelPkg.NewMetrics(otelProvider.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := persistence.Open(persistence.DefaultDBPath(cfg.HomeDir))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	eventBus := bus.New()

	brk := breaker.New(cfg.Breaker.Threshold, cfg.BreakerCooldown())
	brk.SetKVStore(store)
	brk.SetBus(eventBus)
	brk.Load(ctx)

	client := delegate.NewWSClient(cfg.Delegate.URL, cfg.Delegate.AuthToken, cfg.DialTimeout(), logger)

	exec := executor.New(client, brk, executor.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		Bus:         eventBus,
		Metrics:     instruments,
		Logger:      logger,
	})

	b := bridge.New(client, brk, exec, bridge.Config{
		MaxConcurrent:  cfg.MaxConcurrent,
		SweepInterval:  cfg.SweepInterval(),
		DefaultTimeout: cfg.DefaultTimeout(),
		Bus:            eventBus,
		Metrics:        instruments,
		Logger:         logger,
		Store:          store,
	})

	initCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout())
	if err := b.Initialize(initCtx); err != nil {
		// Dispatch stays blocked; the scheduled probe can recover the
		// bridge once the delegate comes back.
		logger.Error("bridge initialization failed", "error", err)
	}
	cancel()

	b.Start(ctx)
	defer b.Drain(5 * time.Second)

	if cfg.Delegate.ProbeSchedule != "" {
		scheduler, err := cron.NewScheduler(cron.Config{
			Schedule:     cfg.Delegate.ProbeSchedule,
			Probe:        client.Probe,
			Report:       b.RecordProbe,
			ProbeTimeout: cfg.DialTimeout(),
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("parse probe schedule %q: %w", cfg.Delegate.ProbeSchedule, err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	watcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			for range watcher.Events() {
				if reloaded, err := config.LoadFrom(cfg.HomeDir); err == nil {
					logger.Info("config reloaded",
						"config_fingerprint", reloaded.Fingerprint(),
						"note", "connection and bind settings require restart",
					)
				} else {
					logger.Warn("config reload failed", "error", err)
				}
			}
		}()
	}

	authToken := ""
	if cfg.Auth.Enabled {
		authToken = cfg.Auth.Token
	}
	cat := catalog.Default()
	server := gateway.NewServer(b, classify.New(cat), cat, store, gateway.Config{
		BindAddr:  cfg.BindAddr,
		AuthToken: authToken,
		Logger:    logger,
	})
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	logger.Info("offload bridge stopped")
	return nil
}

// loadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment, skipping comments and already-set variables.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
