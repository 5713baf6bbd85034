package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/playground"
	"github.com/prpm-dev/registry/internal/provider"
)

// respondError maps domain errors to the structured JSON envelope. This is
// the only place errors cross the API boundary, so no stack trace or raw
// driver error ever leaks to a client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var insufficient *credits.InsufficientCreditsError
	var provErr *provider.Error

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":             "insufficient_credits",
			"message":           "Not enough credits for this run.",
			"required_credits":  insufficient.Required,
			"available_credits": insufficient.Available,
		})
	case errors.Is(err, playground.ErrAnonymousLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "limit_exceeded",
			"message": "The free run has been used. Sign up to keep going.",
		})
	case errors.Is(err, playground.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "input is required",
		})
	case errors.Is(err, playground.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Session not found.",
		})
	case errors.Is(err, ErrPackageNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Package not found.",
		})
	case errors.As(err, &provErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "provider_error",
			"message": "The model provider failed. You were not charged; please retry.",
		})
	default:
		h.Log.WithError(err).Error("unhandled request error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong.",
		})
	}
}
