package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fricon-core/internal/models"
	"fricon-core/internal/reactions"
	"fricon-core/internal/telemetry"
)

// ReactionHandler toggles reactions and registers post and comment targets.
type ReactionHandler struct {
	reactor *reactions.Reactor
	targets *reactions.Store
	emitter *telemetry.AuditEmitter
	userID  string
}

func NewReactionHandler(reactor *reactions.Reactor, targets *reactions.Store, emitter *telemetry.AuditEmitter, userID string) *ReactionHandler {
	return &ReactionHandler{reactor: reactor, targets: targets, emitter: emitter, userID: userID}
}

func (h *ReactionHandler) React(c *gin.Context) {
	var req struct {
		Kind     models.TargetKind `json:"kind" binding:"required"`
		TargetID string            `json:"targetId" binding:"required"`
		Reaction string            `json:"reaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.reactor.React(c.Request.Context(), req.Kind, req.TargetID, req.Reaction)
	if err != nil {
		if errors.Is(err, reactions.ErrReactionRejected) {
			h.emitter.Emit(c.Request.Context(), "INFO", "reaction on "+string(req.Kind)+" "+req.TargetID+" rejected", requestIDFromContext(c), userRef(h.userID))
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Track registers the reaction state of a post or comment the UI displays.
func (h *ReactionHandler) Track(c *gin.Context) {
	var target reactions.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.targets.Track(target); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
