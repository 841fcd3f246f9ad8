package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/logger"
	"go.uber.org/zap"
)

// SSEHandler streams bus events to an admin client as Server-Sent Events.
func (s *Server) SSEHandler(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	l := logger.FromCtx(c.Request.Context())
	clientChan := make(chan event.Event, 10)

	// the bus is callback based, so bridge it onto a channel; slow clients drop events
	bridge := func(e event.Event) {
		select {
		case clientChan <- e:
		default:
			l.Debug("SSE client too slow, dropping event", zap.String("topic", string(e.Type)))
		}
	}

	subIDs := make(map[event.EventType]string, len(event.AllTopics))
	for _, t := range event.AllTopics {
		subIDs[t] = s.Bus.Subscribe(t, bridge)
	}
	defer func() {
		for t, id := range subIDs {
			s.Bus.Unsubscribe(t, id)
		}
		l.Debug("SSE client disconnected")
	}()

	c.SSEvent("message", "connected")
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case evt := <-clientChan:
			data, err := json.Marshal(evt.Payload)
			if err != nil {
				l.Warn("SSE marshal failed", zap.Error(err))
				continue
			}
			c.SSEvent(string(evt.Type), string(data))
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
