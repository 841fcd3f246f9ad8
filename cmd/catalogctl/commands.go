package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/db"
	"github.com/pokerjest/animestream/internal/mailer"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/service"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		// InitDB already migrated in the pre-run hook
		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", config.AppConfig.Database.Driver)
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin <username> <email> <password>",
	Short: "Create an administrator account",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig
		auth := service.NewAuthService(db.DB, mailer.New(cfg.Mail), cfg.Auth, cfg.Mail.ResetURL)
		user, err := auth.CreateAdmin(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var withEpisodes bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an anime from a metadata provider",
}

var importTMDBCmd = &cobra.Command{
	Use:   "tmdb <id>",
	Short: "Import a TMDB TV show",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], importService().ImportTMDB)
	},
}

var importAniListCmd = &cobra.Command{
	Use:   "anilist <id>",
	Short: "Import an AniList media entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], importService().ImportAniList)
	},
}

type importFunc func(ctx context.Context, id int, withEpisodes bool) (*model.Anime, error)

func runImport(cmd *cobra.Command, rawID string, run importFunc) error {
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", rawID)
	}
	anime, err := run(cmd.Context(), id, withEpisodes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s (id %d)\n", anime.Title, anime.Slug, anime.ID)
	return nil
}

var refreshID uint

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-pull provider metadata for imported anime",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := importService()
		if refreshID != 0 {
			anime, err := svc.Refresh(cmd.Context(), refreshID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %q\n", anime.Title)
			return nil
		}
		n, err := svc.RefreshAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d anime\n", n)
		return nil
	},
}

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Trim the activity log to the newest entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep := pruneKeep
		if keep == 0 {
			keep = config.AppConfig.Scheduler.ActivityRetention
		}
		return runPrune(cmd, service.NewActivityService(db.DB), keep)
	},
}

type pruner interface {
	Prune(keep int) (int64, error)
}

func runPrune(cmd *cobra.Command, p pruner, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("--keep must be positive (got %d)", keep)
	}
	removed, err := p.Prune(keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d activity entries, kept the newest %d\n", removed, keep)
	return nil
}

func init() {
	importCmd.PersistentFlags().BoolVar(&withEpisodes, "episodes", false, "also import the episode list")
	importCmd.AddCommand(importTMDBCmd, importAniListCmd)

	refreshCmd.Flags().UintVar(&refreshID, "id", 0, "refresh a single anime by id")

	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "entries to keep (default scheduler.activity_retention)")

	rootCmd.AddCommand(migrateCmd, createAdminCmd, importCmd, refreshCmd, pruneCmd)
}
