package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fricon-core/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userRef(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}
