package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/bus"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// FeedbackHandler bridges the feedback bus onto a websocket. Every bus
// envelope is forwarded as one JSON frame; clients are read-only.
type FeedbackHandler struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewFeedbackHandler creates a FeedbackHandler. checkOrigin receives the
// Origin header value and decides whether the socket may be opened.
func NewFeedbackHandler(b *bus.Bus, checkOrigin func(origin string) bool, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		bus: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r.Header.Get("Origin"))
			},
		},
		logger: logger,
	}
}

// Serve upgrades the request and streams feedback envelopes until the
// client goes away.
// Route: GET /api/v1/feedback
func (h *FeedbackHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	msgs, cancel := h.bus.Subscribe()
	defer cancel()

	// Reader goroutine: we never expect frames from the client, but we
	// must drain control messages and notice disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
