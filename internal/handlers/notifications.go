package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fricon-core/internal/notifications"
	"fricon-core/internal/unread"
)

// NotificationHandler serves the notification panel and the unread badges.
type NotificationHandler struct {
	relay    *notifications.Relay
	tracker  *unread.Tracker
	pageSize int
}

func NewNotificationHandler(relay *notifications.Relay, tracker *unread.Tracker, pageSize int) *NotificationHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &NotificationHandler{relay: relay, tracker: tracker, pageSize: pageSize}
}

func (h *NotificationHandler) Unread(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

// List returns the cached notifications, or fetches a page when skip or take
// is given.
func (h *NotificationHandler) List(c *gin.Context) {
	skipParam, hasSkip := c.GetQuery("skip")
	takeParam, hasTake := c.GetQuery("take")
	if !hasSkip && !hasTake {
		c.JSON(http.StatusOK, gin.H{"notifications": h.relay.List()})
		return
	}

	skip, take := 0, h.pageSize
	var err error
	if hasSkip {
		if skip, err = strconv.Atoi(skipParam); err != nil || skip < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skip"})
			return
		}
	}
	if hasTake {
		if take, err = strconv.Atoi(takeParam); err != nil || take <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid take"})
			return
		}
	}

	list, err := h.relay.Load(c.Request.Context(), skip, take)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.relay.MarkRead(c.Request.Context(), c.Param("notification_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.relay.MarkAllRead(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}
