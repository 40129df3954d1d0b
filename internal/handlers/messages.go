package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fricon-core/internal/delivery"
	"fricon-core/internal/models"
	"fricon-core/internal/repositories"
	"fricon-core/internal/telemetry"
)

// MessageHandler exposes the delivery pipeline.
type MessageHandler struct {
	pipeline *delivery.Pipeline
	convs    repositories.ConversationRepository
	emitter  *telemetry.AuditEmitter
	userID   string
}

func NewMessageHandler(pipeline *delivery.Pipeline, convs repositories.ConversationRepository, emitter *telemetry.AuditEmitter, userID string) *MessageHandler {
	return &MessageHandler{pipeline: pipeline, convs: convs, emitter: emitter, userID: userID}
}

// Send submits a composed message. The response is the server-confirmed copy.
func (h *MessageHandler) Send(c *gin.Context) {
	var req delivery.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.pipeline.Send(c.Request.Context(), req)
	if err != nil {
		if delivery.IsNotConfirmed(err) {
			h.emitter.Emit(c.Request.Context(), "WARN", "message to "+req.ConversationID+" not confirmed", requestIDFromContext(c), userRef(h.userID))
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UpdateStatus asks the backend to move a message to the given status.
func (h *MessageHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ack := h.pipeline.UpdateStatus(c.Request.Context(), c.Param("message_id"), req.Status)
	c.JSON(http.StatusOK, gin.H{"acknowledged": ack})
}

func (h *MessageHandler) ListConversations(c *gin.Context) {
	if c.Query("refresh") == "true" {
		list, err := h.pipeline.LoadConversations(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": list})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": h.convs.List()})
}

// OpenConversation makes a conversation the viewed one and returns its newest page.
func (h *MessageHandler) OpenConversation(c *gin.Context) {
	msgs, err := h.pipeline.OpenConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) OpenMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": h.pipeline.OpenID(),
		"messages":        h.pipeline.Messages(),
	})
}

func (h *MessageHandler) LoadOlder(c *gin.Context) {
	added, err := h.pipeline.LoadOlder(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "messages": h.pipeline.Messages()})
}

func (h *MessageHandler) CloseConversation(c *gin.Context) {
	h.pipeline.CloseConversation()
	c.Status(http.StatusNoContent)
}

// MarkSeen evaluates the read predicate for the viewed conversation.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	if c.Param("conversation_id") != h.pipeline.OpenID() {
		respondError(c, delivery.ErrNoOpenConversation)
		return
	}
	var signals delivery.SeenSignals
	if err := c.ShouldBindJSON(&signals); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"seen": h.pipeline.EvaluateSeen(c.Request.Context(), signals)})
}
