// Package handlers implements the admin HTTP API of the agent.
//
// This file holds the response helpers shared by all endpoints. Errors go
// through fail(), which writes the ErrorResponse envelope and logs 5xx with
// the request-scoped logger; failFor() maps store and fleet errors onto a
// status and code.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/xianyu-agent/internal/fleet"
	"github.com/tbourn/xianyu-agent/internal/http/middleware"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/repo"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"credential not found"`
}

// fail aborts the request with the error envelope.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failFor maps err to a response. what names the resource in 404 messages.
func failFor(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, what+" not found")
	case errors.Is(err, repo.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, what+" already exists")
	case errors.Is(err, fleet.ErrClosed):
		fail(c, http.StatusServiceUnavailable, ErrCodeFleetClosed, "fleet is shutting down")
	case market.KindOf(err) != 0:
		fail(c, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
