package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/services"
)

type UserMessageHandler struct {
	retry *services.RetryService
}

func NewUserMessageHandler(retryService *services.RetryService) *UserMessageHandler {
	return &UserMessageHandler{retry: retryService}
}

// Retry requeues a finished message through the full pipeline.
func (umh *UserMessageHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	err = umh.retry.RetryUserMessage(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"queued": true, "user_message_id": id})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, services.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrMissingInstruction):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		RespondError(c, http.StatusInternalServerError, "retry_failed", err)
	}
}
