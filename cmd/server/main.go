package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/anilist"
	"github.com/pokerjest/animestream/internal/api"
	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/db"
	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/logger"
	"github.com/pokerjest/animestream/internal/scheduler"
	"github.com/pokerjest/animestream/internal/storage"
	"github.com/pokerjest/animestream/internal/tmdb"
	"github.com/pokerjest/animestream/internal/worker"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig

	l, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer l.Sync()

	if err := run(cfg); err != nil {
		l.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	// 2. Setup Gin Mode
	gin.SetMode(cfg.Server.Mode)

	if err := db.InitDB(cfg.Database); err != nil {
		return err
	}
	defer db.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	opts := api.Options{Store: store}
	if cfg.TMDB.APIKey != "" {
		opts.TMDB = tmdb.NewClient(cfg.TMDB.APIKey, cfg.TMDB.Language, cfg.TMDB.Proxy)
	} else {
		logger.L().Warn("tmdb.api_key is empty, TMDB import is disabled")
	}
	opts.AniList = anilist.NewClient(cfg.AniList.Token, cfg.AniList.Proxy)

	srv := api.NewServer(cfg, db.DB, event.GlobalBus, opts)
	if err := srv.Auth.EnsureDefaultAdmin(); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	activity := worker.NewActivityWorker(event.GlobalBus, srv.Activity)
	activity.Start()
	defer activity.Stop()

	if cfg.Scheduler.Enabled {
		sch := scheduler.NewManager(srv.Import, cfg.Scheduler.RefreshSpec).
			WithRetention(srv.Activity, cfg.Scheduler.ActivityRetention)
		if err := sch.Start(); err != nil {
			return err
		}
		defer sch.Stop()
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
		// cancelled on shutdown so open event streams end
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server starting", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
