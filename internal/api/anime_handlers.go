package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/service"
)

func (s *Server) ListAnimeHandler(c *gin.Context) {
	var f service.AnimeFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}
	page, err := s.Anime.List(f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) FeaturedAnimeHandler(c *gin.Context) {
	items, err := s.Anime.Featured(queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) TrendingAnimeHandler(c *gin.Context) {
	items, err := s.Anime.Trending(queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) RecentAnimeHandler(c *gin.Context) {
	items, err := s.Anime.RecentlyUpdated(queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetAnimeHandler accepts either a slug or a numeric id.
func (s *Server) GetAnimeHandler(c *gin.Context) {
	anime, err := s.Anime.Resolve(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anime)
}

func (s *Server) ListEpisodesHandler(c *gin.Context) {
	id, err := s.Anime.ResolveID(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	episodes, err := s.Episodes.ListByAnime(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": episodes})
}

func (s *Server) CreateAnimeHandler(c *gin.Context) {
	var in service.AnimeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	anime, err := s.Anime.Create(in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, anime)
}

func (s *Server) UpdateAnimeHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in service.AnimeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	anime, err := s.Anime.Update(id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anime)
}

func (s *Server) DeleteAnimeHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.Anime.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type featuredRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

func (s *Server) SetFeaturedHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req featuredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "featured is required")
		return
	}
	anime, err := s.Anime.SetFeatured(id, *req.Featured)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anime)
}
