package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/service"
)

func (s *Server) GetRatingHandler(c *gin.Context) {
	anime, err := s.Anime.Resolve(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	score, err := s.Ratings.UserRating(currentUserID(c), anime.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.RatingSummary{
		AnimeID:     anime.ID,
		Rating:      anime.Rating,
		RatingCount: anime.RatingCount,
		UserScore:   score,
	})
}

type rateRequest struct {
	Score int `json:"score" binding:"required"`
}

func (s *Server) RateHandler(c *gin.Context) {
	animeID, err := s.Anime.ResolveID(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "score is required")
		return
	}
	summary, err := s.Ratings.Rate(currentUserID(c), animeID, req.Score)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) DeleteRatingHandler(c *gin.Context) {
	animeID, err := s.Anime.ResolveID(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := s.Ratings.Remove(currentUserID(c), animeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type commentQuery struct {
	EpisodeID *uint `form:"episode_id"`
	service.Paging
}

func (s *Server) ListCommentsHandler(c *gin.Context) {
	animeID, err := s.Anime.ResolveID(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	var q commentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}
	page, err := s.Comments.List(animeID, q.EpisodeID, q.Paging)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type commentRequest struct {
	Content   string `json:"content" binding:"required"`
	EpisodeID *uint  `json:"episode_id"`
}

func (s *Server) CreateCommentHandler(c *gin.Context) {
	animeID, err := s.Anime.ResolveID(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	view, err := s.Comments.Create(currentUserID(c), animeID, req.EpisodeID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type contentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) UpdateCommentHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	view, err := s.Comments.Update(currentUser(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) DeleteCommentHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.Comments.Delete(currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
