package models

import "time"

// Plan defines the model for the 'plans' table.
// Plans map a Stripe price to the monthly credit allowance it grants.
type Plan struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	PriceCents     int64     `json:"priceCents" db:"price_cents"`
	MonthlyCredits int       `json:"monthlyCredits" db:"monthly_credits"`
	StripePriceID  string    `json:"-" db:"stripe_price_id"`
	IsPublic       bool      `json:"isPublic" db:"is_public"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}
