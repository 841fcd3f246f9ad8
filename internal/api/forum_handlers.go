package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/service"
)

type topicQuery struct {
	Section string `form:"section"`
	service.Paging
}

func (s *Server) ListTopicsHandler(c *gin.Context) {
	var q topicQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}
	page, err := s.Forum.ListTopics(q.Section, q.Paging)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) GetTopicHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var p service.Paging
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}
	page, err := s.Forum.GetTopic(id, p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type topicRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
	Section string `json:"section"`
}

func (s *Server) CreateTopicHandler(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}
	topic, err := s.Forum.CreateTopic(currentUserID(c), req.Title, req.Content, req.Section)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topic)
}

func (s *Server) UpdateTopicHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}
	topic, err := s.Forum.UpdateTopic(currentUser(c), id, req.Title, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (s *Server) DeleteTopicHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.Forum.DeleteTopic(currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) CreateReplyHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	reply, err := s.Forum.Reply(currentUserID(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (s *Server) UpdateReplyHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	reply, err := s.Forum.UpdateReply(currentUser(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) DeleteReplyHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.Forum.DeleteReply(currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (s *Server) PinTopicHandler(c *gin.Context) {
	s.setTopicFlag(c, s.Forum.SetPinned)
}

func (s *Server) LockTopicHandler(c *gin.Context) {
	s.setTopicFlag(c, s.Forum.SetLocked)
}

func (s *Server) setTopicFlag(c *gin.Context, set func(uint, bool) (*model.ForumTopic, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "value is required")
		return
	}
	topic, err := set(id, *req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}
