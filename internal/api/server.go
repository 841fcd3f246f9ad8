package api

import (
	"github.com/pokerjest/animestream/internal/anilist"
	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/mailer"
	"github.com/pokerjest/animestream/internal/service"
	"github.com/pokerjest/animestream/internal/storage"
	"github.com/pokerjest/animestream/internal/tmdb"
	"gorm.io/gorm"
)

// Options carries the optional collaborators. Nil clients disable their provider.
type Options struct {
	Mailer  mailer.Sender
	Store   *storage.Store
	TMDB    *tmdb.Client
	AniList *anilist.Client
}

// Server wires the services behind the HTTP handlers.
type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Bus    event.Bus
	Store  *storage.Store

	Anime      *service.AnimeService
	Episodes   *service.EpisodeService
	Categories *service.CategoryService
	Ratings    *service.RatingService
	Comments   *service.CommentService
	Forum      *service.ForumService
	Watch      *service.WatchService
	Auth       *service.AuthService
	Import     *service.ImportService
	Dashboard  *service.DashboardService
	Activity   *service.ActivityService
}

func NewServer(cfg *config.Config, conn *gorm.DB, bus event.Bus, opts Options) *Server {
	m := opts.Mailer
	if m == nil {
		m = mailer.New(cfg.Mail)
	}
	episodes := service.NewEpisodeService(conn, bus)
	return &Server{
		Config:     cfg,
		DB:         conn,
		Bus:        bus,
		Store:      opts.Store,
		Anime:      service.NewAnimeService(conn, bus),
		Episodes:   episodes,
		Categories: service.NewCategoryService(conn, bus),
		Ratings:    service.NewRatingService(conn),
		Comments:   service.NewCommentService(conn),
		Forum:      service.NewForumService(conn),
		Watch:      service.NewWatchService(conn, episodes),
		Auth:       service.NewAuthService(conn, m, cfg.Auth, cfg.Mail.ResetURL),
		Import:     service.NewImportService(conn, bus, opts.TMDB, opts.AniList),
		Dashboard:  service.NewDashboardService(conn),
		Activity:   service.NewActivityService(conn),
	}
}
