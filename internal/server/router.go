package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/atelierhq/atelier-backend/internal/handlers"
)

type RouterConfig struct {
  SSEHandler         *handlers.SSEHandler
  TriggerHandler     *handlers.TriggerHandler
  UserMessageHandler *handlers.UserMessageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  // SSE
  router.GET("/sse/stream", cfg.SSEHandler.Stream)

  api := router.Group("/api")
  {
    // Trigger firing authenticates itself with the per-trigger token.
    api.POST("/artifact_triggers/:id/fire", cfg.TriggerHandler.Fire)
    api.POST("/user_messages/:id/retry", cfg.UserMessageHandler.Retry)
  }

  return router
}
