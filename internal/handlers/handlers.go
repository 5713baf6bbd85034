package handlers

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/prpm-dev/registry/internal/billing"
	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/models"
	"github.com/prpm-dev/registry/internal/playground"
)

// PlaygroundService is the slice of the playground the routes call.
type PlaygroundService interface {
	EstimateRun(req playground.RunRequest) (int, error)
	Run(ctx context.Context, req playground.RunRequest) (*playground.RunResult, error)
	AnonymousRun(ctx context.Context, identity string, pkg *models.PromptPackage, input string) (string, error)
}

// Handlers holds all dependencies for the HTTP route handlers.
type Handlers struct {
	DB         *sql.DB
	Ledger     *credits.Ledger
	Playground PlaygroundService
	Sessions   *playground.SessionStore
	Billing    *billing.StripeHandler
	Log        *logrus.Logger
}
