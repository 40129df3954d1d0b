package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"fricon-core/internal/core"
	"fricon-core/internal/middleware"
	"fricon-core/internal/observability"
	"fricon-core/internal/realtime"
	"fricon-core/internal/telemetry"
)

// RouterOptions configures the local API.
type RouterOptions struct {
	ServiceName string
	UserID      string
	APIKey      string
	PageSize    int
	Debug       bool
	Emitter     *telemetry.AuditEmitter
}

// NewRouter builds the loopback API over a wired core.
func NewRouter(c *core.Core, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(middleware.RequestID(), observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(ctx *gin.Context) {
		state := c.Realtime.State()
		status := http.StatusOK
		if state != realtime.StateConnected {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, gin.H{"realtime": state.String()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	messages := NewMessageHandler(c.Delivery, c.Conversations, opts.Emitter, opts.UserID)
	reacts := NewReactionHandler(c.Reactor, c.Targets, opts.Emitter, opts.UserID)
	feed := NewFeedHandler(c.Seen)
	notis := NewNotificationHandler(c.Relay, c.Unread, opts.PageSize)

	v1 := router.Group("/v1", middleware.APIKey(opts.APIKey))
	v1.POST("/messages", messages.Send)
	v1.POST("/messages/:message_id/status", messages.UpdateStatus)
	v1.GET("/conversations", messages.ListConversations)
	v1.POST("/conversations/:conversation_id/open", messages.OpenConversation)
	v1.POST("/conversations/:conversation_id/seen", messages.MarkSeen)
	v1.GET("/open-conversation", messages.OpenMessages)
	v1.POST("/open-conversation/older", messages.LoadOlder)
	v1.DELETE("/open-conversation", messages.CloseConversation)
	v1.POST("/reactions", reacts.React)
	v1.PUT("/reaction-targets", reacts.Track)
	v1.POST("/seen-posts", feed.Seen)
	v1.POST("/seen-posts/flush", feed.Flush)
	v1.GET("/unread", notis.Unread)
	v1.GET("/notifications", notis.List)
	v1.POST("/notifications/:notification_id/read", notis.MarkRead)
	v1.POST("/notifications/read-all", notis.MarkAllRead)

	RegisterDebugRoutes(v1, opts.Emitter, opts.UserID, opts.Debug)
	return router
}
