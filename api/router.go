package api

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", h.HealthCheckHandler)
		apiGroup.GET("/plugins/trello", h.PluginInfoHandler)

		project := apiGroup.Group("/projects/:project/plugins/trello")
		project.GET("/configure", h.ConfigureFormHandler)
		project.POST("/configure", h.ConfigureSaveHandler)
		project.GET("/options", h.OptionsHandler)

		apiGroup.POST("/groups", h.CreateGroupHandler)
		groups := apiGroup.Group("/groups/:group")
		groups.POST("/events", h.CreateEventHandler)
		groups.GET("/plugins/trello/create", h.NewIssueFormHandler)
		groups.POST("/plugins/trello/create", h.CreateIssueHandler)
		groups.DELETE("/plugins/trello/issue", h.UnlinkIssueHandler)
	}

	return router
}
