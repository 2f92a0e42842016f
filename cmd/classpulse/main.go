package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classpulse/internal/analytics"
	"classpulse/internal/api"
	"classpulse/internal/broadcast"
	"classpulse/internal/config"
	"classpulse/internal/database"
	"classpulse/internal/hub"
	"classpulse/internal/inference"
	"classpulse/internal/registry"
	"classpulse/internal/scoring"
	"classpulse/internal/session"
	"classpulse/internal/websocket"
	pkgdatabase "classpulse/pkg/database"
)

// Application wires every component in dependency order:
// database → sessions → registry → scoring → broadcast → analytics →
// inference → hub → transports.
type Application struct {
	config         *config.Config
	dbManager      *database.Manager
	sessionManager *session.Manager
	weightsWatcher *scoring.TableWatcher
	engagementHub  *hub.Hub
	apiServer      *api.Server
	httpServer     *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	sessionManager, err := session.NewManager(context.Background(), dbManager)
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	reg := registry.NewRegistry()

	table := scoring.DefaultTable()
	var watcher *scoring.TableWatcher
	if cfg.Scoring.WeightsPath != "" {
		watcher, err = scoring.WatchTable(cfg.Scoring.WeightsPath, table)
		if err != nil {
			_ = dbManager.Close()
			return nil, fmt.Errorf("failed to watch weights file: %w", err)
		}
	}

	scorer := scoring.NewScorer(cfg.ScorerConfig(), table)
	router := broadcast.NewRouter(reg)
	aggregator := analytics.NewAggregator()
	classifier := inference.NewClient(cfg.Inference.URL, cfg.Inference.Timeout)
	limiter := hub.NewSampleLimiter(cfg.WebSocket.SampleLimit, cfg.WebSocket.SampleWindow)

	engagementHub := hub.NewHub(reg, scorer, router, aggregator, classifier, sessionManager, limiter)

	apiServer := api.NewServer(engagementHub, aggregator, sessionManager, dbManager)
	wsHandler := websocket.NewHandler(engagementHub, cfg.WebSocket.SendQueueSize, cfg.WebSocket.MaxMessageBytes)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:         cfg,
		dbManager:      dbManager,
		sessionManager: sessionManager,
		weightsWatcher: watcher,
		engagementHub:  engagementHub,
		apiServer:      apiServer,
		httpServer:     httpServer,
	}, nil
}

func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting ClassPulse on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("ClassPulse started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop tears components down in reverse order: HTTP first so no new
// work arrives, then the weights watcher, then the database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down ClassPulse")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if app.weightsWatcher != nil {
		if err := app.weightsWatcher.Close(); err != nil {
			log.Printf("Weights watcher shutdown error: %v", err)
		}
	}

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("ClassPulse shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := os.Getenv("CLASSPULSE_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configPath)

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return err
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return app.Stop(shutdownCtx)
}
