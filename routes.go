package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"storesync/config"
	"storesync/http_handler"
)

func AuthRequired() gin.HandlerFunc {
	return func(context *gin.Context) {
		if config.Config.ApiSecret != "" {
			authHeader := context.Request.Header.Get("X-Storesync-Secret")
			if authHeader != config.Config.ApiSecret {
				log.Errorf("Incorrect authorisation received (%s)", authHeader)
				context.String(http.StatusUnauthorized, "Unauthorised")
				context.Abort()
				return
			}
		}
		context.Next()
	}
}

// GetHealth provides unrestricted health status for monitoring tools
func GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func setupRoutes(r *gin.Engine, h *http_handler.HTTPHandler) {
	r.GET("/health", GetHealth)
	r.POST("/ipc", AuthRequired(), h.Ipc)

	apiGroup := r.Group("/api", AuthRequired())
	apiGroup.GET("/status", h.GetStatus)
	apiGroup.POST("/flush", h.FlushAll)
	apiGroup.GET("/conversations", h.ListConversations)
	apiGroup.GET("/conversations/:id", h.GetConversation)
	apiGroup.GET("/workspaces/:workspace_id/resources", h.ListResources)
}
