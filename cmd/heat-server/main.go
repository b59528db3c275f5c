// Package main is the entry point for the Bring the Heat game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/bringtheheat/server/internal/engine"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/infra/storage"
	"github.com/bringtheheat/server/internal/network"
	"github.com/bringtheheat/server/internal/platform/config"
	"github.com/bringtheheat/server/internal/platform/logger"
	"github.com/bringtheheat/server/internal/platform/metrics"
	"github.com/bringtheheat/server/internal/platform/optimization"
	"github.com/bringtheheat/server/internal/store"
)

// runRecorderAdapter translates engine run summaries to storage records.
type runRecorderAdapter struct {
	repo *storage.SQLiteRunRepository
}

func (a *runRecorderAdapter) Record(ctx context.Context, run engine.RunSummary) error {
	return a.repo.Record(ctx, storage.RunResult{
		Lobby:        run.Lobby,
		FinishedAt:   time.Now(),
		Outcome:      run.Outcome,
		Loops:        run.Loops,
		NodesCleared: run.NodesCleared,
		Party:        run.Party,
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.Log.Level)
	appLogger.Info("Initializing 'Bring the Heat' authoritative server...")

	opt := optimization.ForProfile(os.Getenv("TUNING_PROFILE"))

	appLogger.Infof("Initializing SQLite archive at %s...", cfg.Store.SQLitePath)
	db, err := storage.InitSQLite(cfg.Store.SQLitePath)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: " + err.Error())
		os.Exit(1)
	}
	db.SetMaxOpenConns(opt.DBMaxOpenConns)
	db.SetMaxIdleConns(opt.DBMaxIdleConns)
	defer db.Close()

	eventRepo := storage.NewSQLiteEventRepository(db)
	runRepo := storage.NewSQLiteRunRepository(db)
	eventLog := events.NewEventLog(eventRepo)

	var gameStore store.Store
	switch cfg.Store.Backend {
	case "redis":
		appLogger.Infof("Using redis store at %s", cfg.Store.RedisAddr)
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			DB:       cfg.Store.RedisDB,
			PoolSize: opt.RedisPoolSize,
		})
		gameStore = store.NewRedisStore(client)
	default:
		appLogger.Info("Using in-memory store")
		gameStore = store.NewMemoryStore()
	}

	collector := metrics.NewCollector()

	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gameEngine := engine.New(gameStore, appLogger, eventLog, collector, seed)
	gameEngine.SetRunRecorder(&runRecorderAdapter{repo: runRepo})
	defer gameEngine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(gameEngine, appLogger)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog)

	spectator := network.NewSpectatorBridge(gameEngine, appLogger)
	replay := network.NewReplayHandler(eventLog, appLogger)
	leaderboard := network.NewLeaderboardHandler(runRepo, appLogger)

	router := mux.NewRouter()
	router.HandleFunc("/ws", hub.ServeWS)
	router.HandleFunc("/api/spectate/{code}", spectator.HandleSpectate).Methods(http.MethodGet)
	router.HandleFunc("/api/replay", replay.HandleReplay).Methods(http.MethodGet)
	router.HandleFunc("/api/leaderboard", leaderboard.HandleLeaderboard).Methods(http.MethodGet)
	router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Server.StaticDir)))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websockets manage their own deadlines
	}

	go func() {
		appLogger.Infof("Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed: " + err.Error())
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
