package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"fricon-core/internal/models"
	"fricon-core/internal/observability"
	"fricon-core/internal/reactions"
	"fricon-core/internal/realtime"
	"fricon-core/internal/repositories"
	"fricon-core/internal/rest"
	"fricon-core/internal/seenbatch"
)

func statusForCode(code models.Code) int {
	switch code {
	case models.CodeInvalidArgument:
		return http.StatusBadRequest
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeRejected:
		return http.StatusConflict
	case models.CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusFor maps a core error to the HTTP status of the local API.
func statusFor(err error) int {
	var (
		appErr    *models.AppError
		remoteErr *realtime.RemoteError
		statusErr *rest.StatusError
	)
	switch {
	case errors.As(err, &appErr):
		return statusForCode(appErr.Code)
	case errors.Is(err, realtime.ErrNotConfirmed):
		return http.StatusBadGateway
	case errors.As(err, &remoteErr):
		return http.StatusConflict
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound),
		errors.Is(err, reactions.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, seenbatch.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		if statusErr.Rejected() {
			return http.StatusConflict
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("route", c.FullPath()).Str("request_id", requestIDFromContext(c)).Str("ip", observability.IPFromRequest(c.Request)).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
