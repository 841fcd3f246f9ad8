package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine with the middleware stack and all routes.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	if len(s.Config.Server.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.Config.Server))
	}
	r.Use(sessionMiddleware(s.Config))
	InitRoutes(r, s)
	return r
}

func InitRoutes(r *gin.Engine, s *Server) {
	apiGroup := r.Group("/api", s.Authenticate())
	{
		apiGroup.GET("/health", s.HealthHandler)

		// Catalog
		apiGroup.GET("/anime", s.ListAnimeHandler)
		apiGroup.GET("/anime/featured", s.FeaturedAnimeHandler)
		apiGroup.GET("/anime/trending", s.TrendingAnimeHandler)
		apiGroup.GET("/anime/recent", s.RecentAnimeHandler)
		apiGroup.GET("/anime/:ref", s.GetAnimeHandler)
		apiGroup.GET("/anime/:ref/episodes", s.ListEpisodesHandler)
		apiGroup.GET("/anime/:ref/comments", s.ListCommentsHandler)
		apiGroup.GET("/categories", s.ListCategoriesHandler)
		apiGroup.GET("/categories/:slug", s.GetCategoryHandler)
		apiGroup.GET("/episodes/:id", s.GetEpisodeHandler)
		apiGroup.GET("/episodes/:id/watch", s.WatchHandler)

		// Forum
		apiGroup.GET("/forum/topics", s.ListTopicsHandler)
		apiGroup.GET("/forum/topics/:id", s.GetTopicHandler)

		// Auth
		apiGroup.POST("/auth/register", s.RegisterHandler)
		apiGroup.POST("/auth/login", s.LoginHandler)
		apiGroup.POST("/auth/logout", s.LogoutHandler)
		apiGroup.POST("/auth/forgot-password", s.ForgotPasswordHandler)
		apiGroup.POST("/auth/reset-password", s.ResetPasswordHandler)
	}

	userGroup := apiGroup.Group("", RequireAuth())
	{
		userGroup.GET("/me", s.MeHandler)
		userGroup.PUT("/me", s.UpdateMeHandler)
		userGroup.PUT("/me/password", s.ChangePasswordHandler)
		userGroup.GET("/me/history", s.HistoryHandler)
		userGroup.DELETE("/me/history", s.ClearHistoryHandler)
		userGroup.GET("/me/continue", s.ContinueWatchingHandler)
		userGroup.POST("/episodes/:id/progress", s.SaveProgressHandler)

		userGroup.GET("/anime/:ref/rating", s.GetRatingHandler)
		userGroup.PUT("/anime/:ref/rating", s.RateHandler)
		userGroup.DELETE("/anime/:ref/rating", s.DeleteRatingHandler)
		userGroup.POST("/anime/:ref/comments", s.CreateCommentHandler)
		userGroup.PUT("/comments/:id", s.UpdateCommentHandler)
		userGroup.DELETE("/comments/:id", s.DeleteCommentHandler)

		userGroup.POST("/forum/topics", s.CreateTopicHandler)
		userGroup.PUT("/forum/topics/:id", s.UpdateTopicHandler)
		userGroup.DELETE("/forum/topics/:id", s.DeleteTopicHandler)
		userGroup.POST("/forum/topics/:id/replies", s.CreateReplyHandler)
		userGroup.PUT("/forum/replies/:id", s.UpdateReplyHandler)
		userGroup.DELETE("/forum/replies/:id", s.DeleteReplyHandler)
	}

	adminGroup := apiGroup.Group("/admin", RequireAdmin())
	{
		adminGroup.GET("/dashboard", s.DashboardHandler)
		adminGroup.GET("/activity", s.ActivityHandler)
		adminGroup.GET("/events", s.SSEHandler)

		adminGroup.POST("/anime", s.CreateAnimeHandler)
		adminGroup.PUT("/anime/:id", s.UpdateAnimeHandler)
		adminGroup.DELETE("/anime/:id", s.DeleteAnimeHandler)
		adminGroup.PUT("/anime/:id/featured", s.SetFeaturedHandler)
		adminGroup.POST("/anime/:id/refresh", s.RefreshAnimeHandler)
		adminGroup.POST("/anime/:id/episodes", s.CreateEpisodeHandler)
		adminGroup.PUT("/episodes/:id", s.UpdateEpisodeHandler)
		adminGroup.DELETE("/episodes/:id", s.DeleteEpisodeHandler)

		adminGroup.POST("/categories", s.CreateCategoryHandler)
		adminGroup.PUT("/categories/:id", s.UpdateCategoryHandler)
		adminGroup.DELETE("/categories/:id", s.DeleteCategoryHandler)

		adminGroup.GET("/users", s.ListUsersHandler)
		adminGroup.PUT("/users/:id/role", s.SetRoleHandler)

		adminGroup.PUT("/forum/topics/:id/pin", s.PinTopicHandler)
		adminGroup.PUT("/forum/topics/:id/lock", s.LockTopicHandler)

		adminGroup.GET("/import/tmdb/search", s.SearchTMDBHandler)
		adminGroup.GET("/import/tmdb/discover", s.DiscoverTMDBHandler)
		adminGroup.POST("/import/tmdb/:id", s.ImportTMDBHandler)
		adminGroup.GET("/import/anilist/search", s.SearchAniListHandler)
		adminGroup.GET("/import/anilist/trending", s.TrendingAniListHandler)
		adminGroup.POST("/import/anilist/:id", s.ImportAniListHandler)

		adminGroup.POST("/uploads", s.UploadHandler)
	}

	r.NoRoute(s.staticHandler())
}

func (s *Server) HealthHandler(c *gin.Context) {
	status := gin.H{"status": "ok", "database": "ok"}
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// staticHandler serves the built frontend from server.static_dir, falling back to index.html
// so client-side routes resolve.
func (s *Server) staticHandler() gin.HandlerFunc {
	dir := s.Config.Server.StaticDir
	return func(c *gin.Context) {
		if dir == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		path := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			c.File(path)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	}
}
