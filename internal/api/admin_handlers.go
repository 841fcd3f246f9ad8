package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/service"
	"github.com/pokerjest/animestream/internal/storage"
)

const maxUploadSize = 20 << 20

func (s *Server) DashboardHandler(c *gin.Context) {
	stats, err := s.Dashboard.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ActivityHandler(c *gin.Context) {
	logs, err := s.Activity.Recent(queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

func (s *Server) SearchTMDBHandler(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	page, err := s.Import.SearchTMDB(c.Request.Context(), q, queryInt(c, "page", 1))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) DiscoverTMDBHandler(c *gin.Context) {
	page, err := s.Import.DiscoverTMDB(c.Request.Context(), queryInt(c, "page", 1))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) SearchAniListHandler(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	page, err := s.Import.SearchAniList(c.Request.Context(), q, queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) TrendingAniListHandler(c *gin.Context) {
	page, err := s.Import.TrendingAniList(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) ImportTMDBHandler(c *gin.Context) {
	s.runImport(c, s.Import.ImportTMDB)
}

func (s *Server) ImportAniListHandler(c *gin.Context) {
	s.runImport(c, s.Import.ImportAniList)
}

// runImport answers 201 with the new anime, or 409 with the existing one.
func (s *Server) runImport(c *gin.Context, run func(ctx context.Context, id int, withEpisodes bool) (*model.Anime, error)) {
	externalID, err := strconv.Atoi(c.Param("id"))
	if err != nil || externalID <= 0 {
		badRequest(c, "invalid id")
		return
	}
	withEpisodes := c.DefaultQuery("episodes", "true") != "false"

	anime, err := run(c.Request.Context(), externalID, withEpisodes)
	if errors.Is(err, service.ErrAlreadyImported) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "anime": anime})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, anime)
}

func (s *Server) RefreshAnimeHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	anime, err := s.Import.Refresh(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anime)
}

// UploadHandler stores a poster, banner or subtitle file and returns its public URL.
func (s *Server) UploadHandler(c *gin.Context) {
	if !s.Store.Enabled() {
		respondError(c, storage.ErrDisabled)
		return
	}
	kind, ok := storage.ParseKind(c.PostForm("kind"))
	if !ok {
		badRequest(c, "kind must be posters, banners or subtitles")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fh.Size > maxUploadSize {
		badRequest(c, "file is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	url, err := s.Store.UploadFile(c.Request.Context(), kind, fh.Filename, f, fh.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
