// Package billing feeds the credit ledger from Stripe: one-time credit pack
// checkouts and subscription events that carry a monthly allowance.
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	checkoutsession "github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/models"
)

// ErrUnknownPack is returned for a checkout request naming a pack that does
// not exist.
var ErrUnknownPack = errors.New("unknown credit pack")

// CreditPack is a one-time purchase bundle.
type CreditPack struct {
	Label      string `json:"label"`
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"priceCents"`
}

// creditPacks is the static catalog of one-time bundles. Purchased credits
// never expire.
var creditPacks = map[string]CreditPack{
	"starter": {Label: "Starter pack", Credits: 100, PriceCents: 500},
	"builder": {Label: "Builder pack", Credits: 550, PriceCents: 2000},
	"studio":  {Label: "Studio pack", Credits: 1200, PriceCents: 4000},
}

// Packs returns the purchasable credit packs keyed by id.
func Packs() map[string]CreditPack {
	out := make(map[string]CreditPack, len(creditPacks))
	for k, v := range creditPacks {
		out[k] = v
	}
	return out
}

// StripeHandler creates checkout sessions and translates webhook events into
// ledger grants. The core never processes payments itself; Stripe is the
// source of truth and the ledger only records what Stripe confirmed.
type StripeHandler struct {
	db            *sql.DB
	ledger        *credits.Ledger
	webhookSecret string
	successURL    string
	cancelURL     string
	log           *logrus.Logger
}

func NewStripeHandler(db *sql.DB, ledger *credits.Ledger, secretKey, webhookSecret, successURL, cancelURL string, log *logrus.Logger) *StripeHandler {
	stripe.Key = secretKey
	return &StripeHandler{
		db:            db,
		ledger:        ledger,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		log:           log,
	}
}

// CreateCheckoutSession builds a Stripe checkout for a credit pack and
// returns the hosted payment URL. The grant itself happens later, when the
// checkout.session.completed webhook arrives.
func (h *StripeHandler) CreateCheckoutSession(user *models.User, packID string) (string, error) {
	pack, ok := creditPacks[packID]
	if !ok {
		return "", ErrUnknownPack
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s (%d credits)", pack.Label, pack.Credits)),
					},
					UnitAmount: stripe.Int64(pack.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(h.successURL),
		CancelURL:  stripe.String(h.cancelURL),
	}
	if user.StripeCustomerID != nil {
		params.Customer = stripe.String(*user.StripeCustomerID)
	}
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))
	params.AddMetadata("credits", strconv.Itoa(pack.Credits))
	params.AddMetadata("pack", packID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies the Stripe signature and applies the event to the
// ledger. Unrecognized event types are acknowledged and ignored.
func (h *StripeHandler) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		return fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(ctx, event.Data.Raw)
	case "customer.subscription.created", "customer.subscription.updated":
		return h.handleSubscriptionChange(ctx, event.Data.Raw, false)
	case "customer.subscription.deleted":
		return h.handleSubscriptionChange(ctx, event.Data.Raw, true)
	default:
		h.log.WithField("type", event.Type).Debug("ignoring stripe event")
		return nil
	}
}

func (h *StripeHandler) handleCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}

	userID, err := strconv.ParseInt(sess.Metadata["user_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("checkout session has no usable user_id metadata: %w", err)
	}
	amount, err := strconv.Atoi(sess.Metadata["credits"])
	if err != nil {
		return fmt.Errorf("checkout session has no usable credits metadata: %w", err)
	}

	notes := fmt.Sprintf("stripe checkout %s (%s pack)", sess.ID, sess.Metadata["pack"])
	if err := h.ledger.GrantPurchased(ctx, userID, amount, notes); err != nil {
		return err
	}

	if sess.Customer != nil {
		// Remember the customer so later subscription events can find them.
		_, err := h.db.ExecContext(ctx,
			`UPDATE users SET stripe_customer_id = ? WHERE id = ? AND stripe_customer_id IS NULL`,
			sess.Customer.ID, userID)
		if err != nil {
			h.log.WithError(err).Warn("failed to store stripe customer id")
		}
	}

	h.log.WithFields(logrus.Fields{"user": userID, "credits": amount}).Info("credit pack granted")
	return nil
}

func (h *StripeHandler) handleSubscriptionChange(ctx context.Context, raw json.RawMessage, deleted bool) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}
	if sub.Customer == nil {
		return fmt.Errorf("subscription event without customer")
	}

	var userID int64
	err := h.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE stripe_customer_id = ?`, sub.Customer.ID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.log.WithField("customer", sub.Customer.ID).Warn("subscription event for unknown customer")
			return nil
		}
		return fmt.Errorf("failed to resolve subscription customer: %w", err)
	}

	if deleted || sub.Status == stripe.SubscriptionStatusCanceled {
		return h.ledger.SetMonthlyAllowance(ctx, userID, 0, fmt.Sprintf("subscription %s ended", sub.ID))
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return fmt.Errorf("subscription %s has no price", sub.ID)
	}
	priceID := sub.Items.Data[0].Price.ID

	var monthly int
	err = h.db.QueryRowContext(ctx,
		`SELECT monthly_credits FROM plans WHERE stripe_price_id = ?`, priceID).Scan(&monthly)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no plan maps to stripe price %s", priceID)
		}
		return fmt.Errorf("failed to resolve plan: %w", err)
	}

	return h.ledger.SetMonthlyAllowance(ctx, userID, monthly,
		fmt.Sprintf("subscription %s (%s)", sub.ID, priceID))
}
