package playground

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/models"
	"github.com/prpm-dev/registry/internal/provider"
)

// ErrEmptyInput is returned when a run or estimate carries no input text.
var ErrEmptyInput = errors.New("input is required")

// LedgerAPI is the slice of the credit ledger the playground needs.
type LedgerAPI interface {
	GetBalance(ctx context.Context, userID int64) (models.CreditBalance, error)
	Reserve(ctx context.Context, userID int64, amount int) (string, error)
	Debit(ctx context.Context, userID int64, amount int, sessionID, notes string) error
}

// Sessions is the slice of the session store the playground needs.
type Sessions interface {
	Get(ctx context.Context, id string, userID int64) (*models.PlaygroundSession, error)
	Create(ctx context.Context, userID, packageID int64) (*models.PlaygroundSession, error)
	RecordRun(ctx context.Context, sess *models.PlaygroundSession, userMsg, assistantMsg models.Message, cost int) error
}

// Service is the execution gate and settlement layer: it estimates,
// optimistically reserves, dispatches the model call, and settles the
// ledger exactly once per successful call. Failed calls never debit.
type Service struct {
	ledger   LedgerAPI
	sessions Sessions
	provider provider.Provider
	limiter  Limiter
	log      *logrus.Logger

	runTimeout       time.Duration
	customRunTimeout time.Duration
}

func NewService(ledger LedgerAPI, sessions Sessions, prov provider.Provider, limiter Limiter, log *logrus.Logger, runTimeout, customRunTimeout time.Duration) *Service {
	return &Service{
		ledger:           ledger,
		sessions:         sessions,
		provider:         prov,
		limiter:          limiter,
		log:              log,
		runTimeout:       runTimeout,
		customRunTimeout: customRunTimeout,
	}
}

// RunRequest describes one playground run.
type RunRequest struct {
	UserID int64

	// Package supplies the system prompt (and already resolved by the
	// handler, so the service never touches the registry tables).
	Package *models.PromptPackage

	Input     string
	Model     string
	SessionID string

	// CustomPrompt, when non-empty, replaces the package's system prompt
	// and switches the run into the more expensive custom-prompt mode.
	CustomPrompt string

	// Compare runs a second metered call against ComparePackage, or against
	// a no-system-prompt baseline when ComparePackage is nil.
	Compare        bool
	ComparePackage *models.PromptPackage
}

// RunResult is what a settled run returns to the handler.
type RunResult struct {
	Session          *models.PlaygroundSession
	Response         string
	Baseline         *string // comparison-side output, when requested
	CreditsCharged   int
	CreditsRemaining int
}

// EstimateRun predicts the total credit cost of a prospective run, including
// both sides of a comparison.
func (s *Service) EstimateRun(req RunRequest) (int, error) {
	if req.Input == "" {
		return 0, ErrEmptyInput
	}

	total := credits.Estimate(req.Model, req.Input, req.CustomPrompt != "")
	if req.Compare {
		total += credits.Estimate(req.Model, req.Input, false)
	}
	return total, nil
}

// Run executes the full gate sequence:
// estimate -> reserve -> execute -> settle.
//
// Comparison mode dispatches both model calls concurrently, then settles
// each side as its own debit. Only side A's exchange is appended to the
// session; the comparison side is ephemeral.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	estimate, err := s.EstimateRun(req)
	if err != nil {
		return nil, err
	}

	// The reservation is an optimistic funds check only. The ledger
	// re-validates atomically at debit time, since the balance can change
	// under concurrent runs.
	if _, err := s.ledger.Reserve(ctx, req.UserID, estimate); err != nil {
		return nil, err
	}

	sess, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	custom := req.CustomPrompt != ""
	systemPrompt := req.Package.SystemPrompt
	if custom {
		systemPrompt = req.CustomPrompt
	}

	type sideResult struct {
		res *provider.Result
		err error
	}

	timeout := s.runTimeout
	if custom {
		timeout = s.customRunTimeout
	}

	var primary, secondary sideResult
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		primary.res, primary.err = s.provider.Generate(runCtx, systemPrompt, req.Model, req.Input)
	}()

	if req.Compare {
		// Side B: the comparison package, or a no-prompt baseline. Always a
		// standard run (custom mode only applies to side A's prompt).
		comparePrompt := ""
		if req.ComparePackage != nil {
			comparePrompt = req.ComparePackage.SystemPrompt
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
			defer cancel()
			secondary.res, secondary.err = s.provider.Generate(runCtx, comparePrompt, req.Model, req.Input)
		}()
	}

	wg.Wait()

	// Any provider failure settles at zero: nothing is debited and nothing
	// is appended to the session, even if the other side came back fine.
	if primary.err != nil {
		return nil, primary.err
	}
	if req.Compare && secondary.err != nil {
		return nil, secondary.err
	}

	charged := 0

	costA := credits.ActualCost(req.Model, primary.res.TokensUsed, custom)
	if err := s.ledger.Debit(ctx, req.UserID, costA, sess.ID, "playground run"); err != nil {
		return nil, err
	}
	charged += costA

	userMsg := models.Message{Role: models.RoleUser, Content: req.Input}
	assistantMsg := models.Message{Role: models.RoleAssistant, Content: primary.res.Text}
	if err := s.sessions.RecordRun(ctx, sess, userMsg, assistantMsg, costA); err != nil {
		// The debit is already committed; the ledger stays authoritative
		// even if the conversation copy failed.
		s.log.WithError(err).WithField("session", sess.ID).Warn("failed to record run in session")
	}

	var baseline *string
	if req.Compare {
		costB := credits.ActualCost(req.Model, secondary.res.TokensUsed, false)
		if err := s.ledger.Debit(ctx, req.UserID, costB, sess.ID, "playground comparison run"); err != nil {
			return nil, err
		}
		charged += costB
		baseline = &secondary.res.Text
	}

	remaining := 0
	if bal, err := s.ledger.GetBalance(ctx, req.UserID); err == nil {
		remaining = bal.Total()
	} else if !errors.Is(err, credits.ErrNoBalance) {
		s.log.WithError(err).WithField("user", req.UserID).Warn("failed to read balance after run")
	}

	s.log.WithFields(logrus.Fields{
		"user":    req.UserID,
		"session": sess.ID,
		"model":   req.Model,
		"charged": charged,
	}).Info("playground run settled")

	return &RunResult{
		Session:          sess,
		Response:         primary.res.Text,
		Baseline:         baseline,
		CreditsCharged:   charged,
		CreditsRemaining: remaining,
	}, nil
}

// AnonymousRun executes the single free run an unauthenticated identity is
// entitled to. It is pinned to the cheapest model and never touches the
// ledger.
func (s *Service) AnonymousRun(ctx context.Context, identity string, pkg *models.PromptPackage, input string) (string, error) {
	if input == "" {
		return "", ErrEmptyInput
	}

	ok, err := s.limiter.Allow(ctx, identity)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAnonymousLimit
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	res, err := s.provider.Generate(runCtx, pkg.SystemPrompt, credits.CheapestModel(), input)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (s *Service) resolveSession(ctx context.Context, req RunRequest) (*models.PlaygroundSession, error) {
	if req.SessionID != "" {
		return s.sessions.Get(ctx, req.SessionID, req.UserID)
	}
	return s.sessions.Create(ctx, req.UserID, req.Package.ID)
}
