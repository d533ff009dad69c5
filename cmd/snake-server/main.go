// Package main is the entry point for the Snake Arcade game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/cache"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/storage"
	"github.com/MRamiBalles/SnakeArcade/server/internal/network"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/config"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/metrics"
	"github.com/MRamiBalles/SnakeArcade/server/internal/scores"
)

func main() {
	profile := flag.String("profile", "default", "Config preset: default, stress or low")
	addr := flag.String("addr", "", "Listen address (overrides SNAKE_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SNAKE_DB)")
	flag.Parse()

	log.Println("[SNAKE-SERVER] Initializing Snake Arcade authoritative server...")
	appLogger := logger.NewLogger()

	cfg, err := loadConfig(*profile, *addr, *dbPath)
	if err != nil {
		appLogger.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	appLogger.Info("Initializing SQLite database '" + cfg.DBPath + "'...")
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: " + err.Error())
		os.Exit(1)
	}
	defer db.Close()

	eventRepo := storage.NewSQLiteEventRepository(db)

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(storage.NewEventLogPersister(eventRepo),
		events.WithMaxEvents(cfg.EventHistory),
		events.WithPersistQueue(cfg.EventPersistQueue))
	eventLog.OnPersistError(func(err error) {
		appLogger.Warn("Event write-through failed: " + err.Error())
	})

	scoreService := scores.NewService(storage.NewSQLiteScoreRepository(db), appLogger)
	best := cache.NewBestScore(storage.NewSQLiteSettingsRepository(db), cache.DefaultBestScoreKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := engineOptions(cfg)
	newSession := func(r engine.Renderer) *engine.Session {
		return engine.NewSession(engine.SessionConfig{
			Options:       opts,
			Submitter:     scoreService,
			Best:          best,
			EventLog:      eventLog,
			Logger:        appLogger,
			SubmitTimeout: cfg.SubmitTimeout,
			CommandBuffer: cfg.CommandBuffer,
		}, r)
	}

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(network.HubConfig{
		ClientSendBuffer:     cfg.ClientSendBuffer,
		BroadcastBuffer:      cfg.BroadcastBuffer,
		MaxClients:           cfg.MaxClients,
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
	}, newSession, appLogger)
	scoreService.SetAnnouncer(hub)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, 200*time.Millisecond)

	if cfg.TuneInterval > 0 {
		go tune(ctx, cfg, hub, appLogger)
	}

	// Setup API Routes
	mux := http.NewServeMux()
	scoreService.RegisterRoutes(mux)
	network.NewReplayHandler(eventLog, eventRepo, appLogger).RegisterRoutes(mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[SNAKE-SERVER] HTTP API & WS Server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[SNAKE-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[SNAKE-SERVER] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown: " + err.Error())
	}
	cancel()
	eventLog.Close()

	m := metrics.Get()
	log.Printf("[SNAKE-SERVER] Served %s ticks across %s games.",
		humanize.Comma(atomic.LoadInt64(&m.TickCount)), humanize.Comma(atomic.LoadInt64(&m.GamesStarted)))
}

// loadConfig resolves preset, then environment, then flags.
func loadConfig(profile, addr, dbPath string) (*config.Config, error) {
	cfg, err := config.Preset(profile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, cfg.Validate()
}

// engineOptions maps server configuration onto game options.
func engineOptions(cfg *config.Config) engine.Options {
	opts := engine.DefaultOptions()
	opts.Board = grid.Board{Width: cfg.BoardWidth, Height: cfg.BoardHeight}
	if !opts.Board.Contains(opts.Start) {
		opts.Start = grid.Cell{X: cfg.BoardWidth / 2, Y: cfg.BoardHeight / 2}
	}
	if cfg.Wrap {
		opts.Boundary = engine.BoundaryWrap
	}
	opts.PowerUps = cfg.PowerUps
	opts.Accelerate = cfg.Accelerate
	return opts
}

// tune periodically checks metrics and grows client buffers when frames are being dropped.
func tune(ctx context.Context, cfg *config.Config, hub *network.Hub, appLogger *logger.Logger) {
	ticker := time.NewTicker(cfg.TuneInterval)
	defer ticker.Stop()

	var prev map[string]interface{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := metrics.Get().Snapshot()
			rec := config.Analyze(prev, snapshot)
			prev = snapshot
			for _, note := range rec.Notes {
				appLogger.Warn("Tuning: " + note)
			}
			next := config.ApplyRecommendations(cfg, rec)
			if next.ClientSendBuffer != cfg.ClientSendBuffer {
				appLogger.Info("Client send buffer now " + humanize.Comma(int64(next.ClientSendBuffer)))
				hub.SetSendBuffer(next.ClientSendBuffer)
			}
			cfg = next
		}
	}
}
