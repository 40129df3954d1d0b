package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fricon-core/internal/models"
	"fricon-core/internal/seenbatch"
)

// FeedHandler buffers feed observations.
type FeedHandler struct {
	buffer *seenbatch.Buffer
}

func NewFeedHandler(buffer *seenbatch.Buffer) *FeedHandler {
	return &FeedHandler{buffer: buffer}
}

func (h *FeedHandler) Seen(c *gin.Context) {
	var item models.SeenPost
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if item.FeedID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feedId is required"})
		return
	}

	flushed, err := h.buffer.Add(c.Request.Context(), item)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"flushed": flushed, "pending": h.buffer.Pending()})
}

func (h *FeedHandler) Flush(c *gin.Context) {
	flushed, err := h.buffer.FlushNow(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": flushed})
}
