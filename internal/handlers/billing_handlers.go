package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prpm-dev/registry/internal/billing"
	"github.com/prpm-dev/registry/internal/models"
)

// GetPlans is the handler for GET /v1/plans. It also lists the one-time
// credit packs so the client can render both purchase paths.
func (h *Handlers) GetPlans(c *gin.Context) {
	query := `
		SELECT id, name, price_cents, monthly_credits, is_public, created_at, updated_at
		FROM plans WHERE is_public = 1 ORDER BY price_cents`

	rows, err := h.DB.QueryContext(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer rows.Close()

	plans := []models.Plan{}
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.MonthlyCredits, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt); err != nil {
			h.respondError(c, err)
			return
		}
		plans = append(plans, p)
	}

	c.JSON(http.StatusOK, gin.H{
		"plans": plans,
		"packs": billing.Packs(),
	})
}

// CheckoutInput is the body for POST /v1/billing/checkout.
type CheckoutInput struct {
	Pack string `json:"pack" binding:"required"`
}

// CreateCheckout is the handler for POST /v1/billing/checkout. Returns the
// hosted Stripe URL; the ledger grant lands when the webhook confirms
// payment.
func (h *Handlers) CreateCheckout(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	user := &models.User{}
	err := h.DB.QueryRowContext(c.Request.Context(),
		`SELECT id, email, display_name, stripe_customer_id FROM users WHERE id = ?`, userID).
		Scan(&user.ID, &user.Email, &user.DisplayName, &user.StripeCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "User not found."})
			return
		}
		h.respondError(c, err)
		return
	}

	url, err := h.Billing.CreateCheckoutSession(user, input.Pack)
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPack) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "Unknown credit pack"})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}

// StripeWebhook is the handler for POST /v1/billing/webhook. Signature
// verification happens inside the billing layer; a bad signature is a 400 so
// Stripe retries only on our own failures.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "Unreadable payload"})
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if err := h.Billing.HandleWebhook(c.Request.Context(), payload, sig); err != nil {
		h.Log.WithError(err).Warn("stripe webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "Webhook rejected"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
