package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prpm-dev/registry/internal/playground"
)

// EstimateInput is the body for POST /v1/playground/estimate.
type EstimateInput struct {
	PackageID    int64  `json:"package_id" binding:"required"`
	Input        string `json:"input" binding:"required"`
	Model        string `json:"model" binding:"required"`
	CustomPrompt string `json:"custom_prompt"`
}

// EstimatePlaygroundRun is the handler for POST /v1/playground/estimate.
// Pure prediction: nothing is reserved or debited here.
func (h *Handlers) EstimatePlaygroundRun(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input EstimateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	pkg, err := h.packageByID(c.Request.Context(), input.PackageID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	estimate, err := h.Playground.EstimateRun(playground.RunRequest{
		UserID:       userID,
		Package:      pkg,
		Input:        input.Input,
		Model:        input.Model,
		CustomPrompt: input.CustomPrompt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"estimated_credits": estimate})
}

// RunInput is the body for POST /v1/playground/run.
type RunInput struct {
	PackageID    int64  `json:"package_id" binding:"required"`
	Input        string `json:"input" binding:"required"`
	Model        string `json:"model" binding:"required"`
	SessionID    string `json:"session_id"`
	CustomPrompt string `json:"custom_prompt"`

	// Compare requests a second metered run. With ComparePackageID unset the
	// second side is a no-system-prompt baseline.
	Compare          bool   `json:"compare"`
	ComparePackageID *int64 `json:"compare_package_id"`
}

// RunPlayground is the handler for POST /v1/playground/run.
func (h *Handlers) RunPlayground(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input RunInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	pkg, err := h.packageByID(c.Request.Context(), input.PackageID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	req := playground.RunRequest{
		UserID:       userID,
		Package:      pkg,
		Input:        input.Input,
		Model:        input.Model,
		SessionID:    input.SessionID,
		CustomPrompt: input.CustomPrompt,
		Compare:      input.Compare || input.ComparePackageID != nil,
	}
	if input.ComparePackageID != nil {
		comparePkg, err := h.packageByID(c.Request.Context(), *input.ComparePackageID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		req.ComparePackage = comparePkg
	}

	result, err := h.Playground.Run(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{
		"session_id":        result.Session.ID,
		"conversation":      result.Session.Conversation,
		"credits_spent":     result.Session.CreditsSpent,
		"credits_charged":   result.CreditsCharged,
		"credits_remaining": result.CreditsRemaining,
		"response":          result.Response,
	}
	if result.Baseline != nil {
		resp["baseline"] = *result.Baseline
	}
	c.JSON(http.StatusOK, resp)
}

// AnonymousRunInput is the body for POST /v1/playground/anonymous-run.
type AnonymousRunInput struct {
	PackageID int64  `json:"package_id" binding:"required"`
	Input     string `json:"input" binding:"required"`
}

// AnonymousRunPlayground is the handler for POST /v1/playground/anonymous-run.
// One free run per anonymous identity, pinned to the cheapest model.
func (h *Handlers) AnonymousRunPlayground(c *gin.Context) {
	var input AnonymousRunInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	pkg, err := h.packageByID(c.Request.Context(), input.PackageID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	identity := playground.AnonymousIdentity(c.ClientIP(), c.Request.UserAgent())
	response, err := h.Playground.AnonymousRun(c.Request.Context(), identity, pkg, input.Input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": response})
}

// ListSessions is the handler for GET /v1/playground/sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	userID := c.GetInt64("userID")

	sessions, err := h.Sessions.List(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession is the handler for GET /v1/playground/sessions/:id.
func (h *Handlers) GetSession(c *gin.Context) {
	userID := c.GetInt64("userID")

	sess, err := h.Sessions.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// DeleteSession is the handler for DELETE /v1/playground/sessions/:id.
func (h *Handlers) DeleteSession(c *gin.Context) {
	userID := c.GetInt64("userID")

	if err := h.Sessions.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}
