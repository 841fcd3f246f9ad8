package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pokerjest/animestream/internal/anilist"
	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/db"
	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/logger"
	"github.com/pokerjest/animestream/internal/service"
	"github.com/pokerjest/animestream/internal/tmdb"
	"github.com/spf13/cobra"
)

var (
	configDir string
	logLevel  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "catalogctl",
	Short:         "Maintenance commands for the anime catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(configDir); err != nil {
			return err
		}
		level := config.AppConfig.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		if _, err := logger.Init(level, config.AppConfig.Log.Format); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return db.InitDB(config.AppConfig.Database)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.L().Sync()
		return db.CloseDB()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

// importService builds the import pipeline from the loaded config. TMDB stays disabled without a key.
func importService() *service.ImportService {
	cfg := config.AppConfig
	var tmdbClient *tmdb.Client
	if cfg.TMDB.APIKey != "" {
		tmdbClient = tmdb.NewClient(cfg.TMDB.APIKey, cfg.TMDB.Language, cfg.TMDB.Proxy)
	}
	return service.NewImportService(db.DB, event.GlobalBus, tmdbClient, anilist.NewClient(cfg.AniList.Token, cfg.AniList.Proxy))
}
