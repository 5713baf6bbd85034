package billing

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prpm-dev/registry/internal/models"
)

func TestPacksCatalog(t *testing.T) {
	packs := Packs()
	require.NotEmpty(t, packs)
	for id, pack := range packs {
		assert.Greater(t, pack.Credits, 0, "pack %s", id)
		assert.Greater(t, pack.PriceCents, int64(0), "pack %s", id)
		assert.NotEmpty(t, pack.Label, "pack %s", id)
	}

	// The returned map is a copy; mutating it must not touch the catalog.
	packs["starter"] = CreditPack{}
	assert.Greater(t, Packs()["starter"].Credits, 0)
}

func TestCreateCheckoutSessionUnknownPack(t *testing.T) {
	h := NewStripeHandler(nil, nil, "sk_test", "whsec", "https://x/success", "https://x/cancel", logrus.New())

	_, err := h.CreateCheckoutSession(&models.User{ID: 7}, "no-such-pack")
	assert.ErrorIs(t, err, ErrUnknownPack)
}
