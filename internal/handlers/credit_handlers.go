package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prpm-dev/registry/internal/credits"
)

// GetMyCredits is the handler for GET /v1/credits.
// A user without a credit record is reported as a zero balance, not an
// error.
func (h *Handlers) GetMyCredits(c *gin.Context) {
	userID := c.GetInt64("userID")

	bal, err := h.Ledger.GetBalance(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, credits.ErrNoBalance) {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance": bal,
		"total":   bal.Total(),
	})
}

// GetCreditHistory is the handler for GET /v1/credits/history.
func (h *Handlers) GetCreditHistory(c *gin.Context) {
	userID := c.GetInt64("userID")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.Ledger.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
