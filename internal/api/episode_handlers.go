package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/service"
)

func (s *Server) GetEpisodeHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ep, err := s.Episodes.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

// WatchHandler picks the stream and subtitle track. Signed-in callers also get their resume point.
func (s *Server) WatchHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := s.Watch.Watch(id, currentUserID(c), c.Query("quality"), c.Query("subtitle"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type progressRequest struct {
	Position *int `json:"position" binding:"required"`
	Duration int  `json:"duration"`
}

func (s *Server) SaveProgressHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "position is required")
		return
	}
	h, err := s.Watch.SaveProgress(currentUserID(c), id, *req.Position, req.Duration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) CreateEpisodeHandler(c *gin.Context) {
	animeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in service.EpisodeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	ep, err := s.Episodes.Create(animeID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ep)
}

func (s *Server) UpdateEpisodeHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in service.EpisodeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	ep, err := s.Episodes.Update(id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (s *Server) DeleteEpisodeHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.Episodes.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
