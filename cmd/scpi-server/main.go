package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unusual-audio/workbench/internal/config"
	"github.com/unusual-audio/workbench/internal/health"
	"github.com/unusual-audio/workbench/internal/instrument"
	"github.com/unusual-audio/workbench/internal/logger"
	"github.com/unusual-audio/workbench/internal/metrics"
	"github.com/unusual-audio/workbench/internal/mqtt"
	"github.com/unusual-audio/workbench/internal/scpi"
)

// Version is overridden at build time via -ldflags
var Version = "dev"

// Diagnostic codes for the MQTT side channel
const (
	DiagnosticOK          = 0
	DiagnosticConfigError = 1001
	DiagnosticServeError  = 1002
)

// Application wires the signal generator personality, the SCPI line server,
// and the optional metrics and MQTT status surfaces together
type Application struct {
	config    *config.Config
	generator *instrument.SignalGenerator
	server    *scpi.Server
	publisher *mqtt.StatusPublisher
	collector *metrics.PrometheusMetrics
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	// Initialize logging with level
	logger.GlobalLogging = &cfg.Logging
	logger.LogStartup("Logging initialized with level: %s", cfg.Logging.Level)

	app := &Application{config: cfg}

	// Create the instrument personality and the line server serving it
	app.generator = instrument.NewSignalGenerator(cfg.Identity, cfg.Channels)
	app.server = scpi.NewServer(app.generator)

	// Metrics are optional; the null collector keeps the dispatch path free
	// of collection cost when disabled
	if cfg.Metrics.Port > 0 {
		app.collector = metrics.NewPrometheusMetrics()
		app.server.SetMetrics(app.collector)
		app.generator.Session().SetMetrics(app.collector)
	}

	// MQTT availability publishing is optional as well
	if cfg.MQTT.Enabled {
		app.publisher = mqtt.NewStatusPublisher(&cfg.MQTT)
	}

	return app, nil
}

// Run starts all configured components and blocks until ctx is cancelled or
// one of them fails
func (app *Application) Run(ctx context.Context) error {
	logger.LogInfo("🚀 Starting SCPI server (%s)...", app.config.Identity)

	if err := app.server.Listen(app.config.Server.Host, app.config.Server.Port); err != nil {
		return err
	}

	if app.publisher != nil {
		if err := app.publisher.Connect(ctx); err != nil {
			return fmt.Errorf("error connecting status publisher: %w", err)
		}
		if err := app.publisher.PublishDiagnostic(ctx, DiagnosticOK, "SCPI server started"); err != nil {
			logger.LogWarn("Error publishing startup diagnostic: %v", err)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return app.server.Serve(groupCtx)
	})

	if app.collector != nil {
		group.Go(func() error {
			return app.serveMetrics(groupCtx)
		})
	}

	if app.publisher != nil {
		group.Go(func() error {
			app.heartbeatLoop(groupCtx)
			return nil
		})
	}

	logger.LogInfo("✅ SCPI server started on port %d", app.config.Server.Port)
	return group.Wait()
}

// Stop publishes the offline status and releases resources
func (app *Application) Stop() {
	logger.LogInfo("🛑 Stopping SCPI server...")

	if app.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := app.publisher.PublishStatusOffline(ctx); err != nil {
			logger.LogWarn("Error publishing offline status: %v", err)
		} else if err := app.publisher.PublishDiagnostic(ctx, DiagnosticOK, "SCPI server stopped gracefully"); err != nil {
			logger.LogWarn("Error publishing shutdown diagnostic: %v", err)
		}
		app.publisher.Disconnect()
	}

	app.server.Close()
	logger.LogInfo("✅ SCPI server stopped")
}

// serveMetrics exposes /metrics and /health until ctx is cancelled
func (app *Application) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.collector)
	mux.Handle("/health", health.NewHealthHandler(app.collector, app.config.Identity, Version))

	// Timeouts guard against slowloris clients (gosec G114)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Metrics.Port),
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.LogInfo("Metrics endpoint listening on :%d", app.config.Metrics.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// heartbeatLoop republishes the retained online status every 30 seconds so a
// broker restart cannot leave the server marked offline
func (app *Application) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.LogDebug("Heartbeat loop stopped")
			return
		case <-ticker.C:
			if err := app.publisher.PublishStatusOnline(ctx); err != nil {
				logger.LogWarn("Heartbeat failed: %v", err)
			}
		}
	}
}

func main() {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT and SIGTERM for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Parse command line arguments
	configPath := ""
	for i, arg := range os.Args[1:] {
		if arg == "--help" || arg == "-h" {
			fmt.Printf("Usage: %s [config_path]\n", os.Args[0])
			fmt.Printf("  config_path: Path to configuration file (optional)\n")
			return
		} else if i == 0 { // First argument is config path
			configPath = arg
		}
	}

	app, err := NewApplication(configPath)
	if err != nil {
		logger.LogError("Application creation error: %v", err)
		os.Exit(1)
	}

	// Cancel the serving context on the first stop signal
	go func() {
		<-sigChan
		logger.LogInfo("📢 Stop signal received...")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		logger.LogError("Server error: %v", err)
		app.Stop()
		os.Exit(1)
	}

	app.Stop()
}
