package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/realtime"
)

type SSEHandler struct {
	hub *realtime.SSEHub
}

func NewSSEHandler(hub *realtime.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream subscribes the caller to one chat's event stream and blocks until
// the client disconnects.
func (sh *SSEHandler) Stream(c *gin.Context) {
	chatID, err := uuid.Parse(c.Query("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}

	client := sh.hub.NewSSEClient(uuid.New())
	sh.hub.AddChannel(client, realtime.ChatChannel(chatID))
	defer sh.hub.RemoveClient(client)

	sh.hub.ServeHTTP(c.Writer, c.Request, client)
}
