// Councild runs the council analysis daemon.
//
// The daemon serves the session API over HTTP, runs every session through the
// analysis, design, planning and synthesis phases, and optionally publishes
// lifecycle events and archives finished sessions through NATS.
//
// Configuration is loaded from ~/.config/council/config.yaml (or --config)
// and COUNCIL_ environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (offline provider, localhost:9191)
//	councild
//
//	# Route technical analysis to OpenAI and enable the event bus
//	COUNCIL_PROVIDERS_OPENAI_API_KEY=sk-... \
//	COUNCIL_NATS_ENABLED=true \
//	councild
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/events"
	councilhttp "github.com/fyrsmithlabs/council/internal/http"
	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/orchestrator"
	"github.com/fyrsmithlabs/council/internal/persist"
	"github.com/fyrsmithlabs/council/internal/provider"
	"github.com/fyrsmithlabs/council/internal/redact"
	"github.com/fyrsmithlabs/council/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const instrumentationName = "github.com/fyrsmithlabs/council/cmd/councild"

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/council/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  councild           Start the council daemon\n")
			fmt.Fprintf(os.Stderr, "  councild version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("councild by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled or the HTTP
// server fails.
//
// Startup order:
//  1. Configuration
//  2. Telemetry, then the logger bridged to it
//  3. Providers, role routing and secret redaction
//  4. NATS event bus and session archive (when enabled)
//  5. Orchestrator
//  6. HTTP server
//
// Shutdown runs in reverse so that sessions still running can publish and
// persist their final state before the connection closes.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromObservability(cfg.Observability)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting councild",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("telemetry", tel.IsEnabled()),
		zap.Bool("nats", cfg.NATS.Enabled))
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded, some signals are dropped", zap.Strings("problems", h.Problems))
	}

	router, err := provider.FromConfig(ctx, cfg.Providers, logger)
	if err != nil {
		return fmt.Errorf("failed to configure providers: %w", err)
	}

	var redactor orchestrator.Redactor
	if !cfg.Redaction.Disabled {
		r, err := redact.New(cfg.Redaction)
		if err != nil {
			return fmt.Errorf("failed to configure redaction: %w", err)
		}
		redactor = r
	} else {
		logger.Warn(ctx, "secret redaction disabled, requests reach providers verbatim")
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Router:          router,
		Events:          deps.publisher,
		Persister:       deps.persister,
		PersistAlways:   cfg.Persist.Always,
		PersistTimeout:  cfg.Persist.Timeout.Duration(),
		Redactor:        redactor,
		ProviderTimeout: cfg.Orchestrator.ProviderTimeout.Duration(),
		SessionTTL:      cfg.Orchestrator.SessionTTL.Duration(),
		SweepInterval:   cfg.Orchestrator.SweepInterval.Duration(),
		MaxQueryLength:  cfg.Orchestrator.MaxQueryLength,
		TokenBudget:     cfg.Orchestrator.TokenBudget,
		Logger:          logger.Named("orchestrator"),
		Tracer:          tel.Tracer(instrumentationName),
		Meter:           tel.Meter(instrumentationName),
	})
	if err != nil {
		deps.close(logger)
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	srvCfg := &councilhttp.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,
		Meter:   tel.Meter(instrumentationName),
	}
	if deps.archive != nil {
		srvCfg.Archive = deps.archive
	}
	srv, err := councilhttp.NewServer(orch, logger.Underlying().Named("http"), srvCfg)
	if err != nil {
		deps.close(logger)
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	shutdownErr := errors.Join(
		srv.Shutdown(shutdownCtx),
		orch.Close(shutdownCtx),
	)
	deps.close(logger)
	shutdownErr = errors.Join(shutdownErr, tel.Shutdown(shutdownCtx))

	return errors.Join(serveErr, shutdownErr)
}

// dependencies holds the optional NATS-backed infrastructure.
type dependencies struct {
	natsConn  *nats.Conn
	publisher orchestrator.EventPublisher
	persister orchestrator.Persister
	archive   *persist.KVSink
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{
		publisher: events.Nop{},
		persister: persist.Nop{},
	}
	if !cfg.NATS.Enabled {
		logger.Info(ctx, "nats disabled, events and archive are off")
		return deps, nil
	}

	nc, err := events.Connect(cfg.NATS, logger)
	if err != nil {
		return nil, err
	}
	deps.natsConn = nc

	pub, err := events.NewPublisher(nc, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	deps.publisher = pub

	sink, err := persist.NewKVSink(ctx, nc, cfg.Persist.Bucket, logger)
	if err != nil {
		// Events still work on a server without JetStream.
		logger.Warn(ctx, "session archive unavailable", zap.Error(err))
	} else {
		deps.persister = sink
		deps.archive = sink
	}

	logger.Info(ctx, "nats connected",
		zap.String("url", nc.ConnectedUrlRedacted()),
		zap.String("subject_prefix", cfg.NATS.SubjectPrefix),
		zap.Bool("archive", deps.archive != nil))

	return deps, nil
}

func (d *dependencies) close(logger *logging.Logger) {
	if d.natsConn == nil {
		return
	}
	if err := d.natsConn.Drain(); err != nil {
		logger.Warn(context.Background(), "failed to drain nats connection", zap.Error(err))
	}
}
