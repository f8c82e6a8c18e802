package app

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/realtime"
)

// wireRouter exposes the minimal HTTP surface this core owns: health and the
// SSE subscribe endpoint. The rest of the product's API lives elsewhere.
func wireRouter(log *logger.Logger, hub *realtime.Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/events", func(c *gin.Context) {
		userID, err := uuid.Parse(strings.TrimSpace(c.Query("user_id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}

		client := hub.NewClient()
		hub.Subscribe(client, realtime.UserChannel(userID))
		if orgRaw := strings.TrimSpace(c.Query("organization_id")); orgRaw != "" {
			orgID, err := uuid.Parse(orgRaw)
			if err != nil {
				hub.CloseClient(client)
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad organization_id"})
				return
			}
			hub.Subscribe(client, realtime.OrgChannel(orgID))
		}
		defer hub.CloseClient(client)

		hub.ServeHTTP(c.Writer, c.Request, client)
	})

	return router
}
