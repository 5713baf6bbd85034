package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/prpm-dev/registry/internal/auth"
	"github.com/prpm-dev/registry/internal/billing"
	"github.com/prpm-dev/registry/internal/config"
	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/database"
	"github.com/prpm-dev/registry/internal/handlers"
	"github.com/prpm-dev/registry/internal/playground"
	"github.com/prpm-dev/registry/internal/provider"
	"github.com/prpm-dev/registry/internal/routes"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	auth.Init(cfg.JWTSecret)

	db, err := database.OpenDB(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	gemini, err := provider.NewGemini(context.Background(), cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("failed to initialize model provider: %v", err)
	}
	defer gemini.Close()

	ledger := credits.NewLedger(db)
	sessions := playground.NewSessionStore(db)
	limiter := playground.NewRedisLimiter(rdb, 24*time.Hour)
	playgroundSvc := playground.NewService(ledger, sessions, gemini, limiter, log,
		cfg.RunTimeout, cfg.CustomRunTimeout)
	stripeHandler := billing.NewStripeHandler(db, ledger, cfg.StripeSecretKey,
		cfg.StripeWebhookSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, log)

	app := &handlers.Handlers{
		DB:         db,
		Ledger:     ledger,
		Playground: playgroundSvc,
		Sessions:   sessions,
		Billing:    stripeHandler,
		Log:        log,
	}

	// Billing cycle boundary: roll unused monthly credits into the capped
	// rollover bucket and reset the used counters.
	c := cron.New()
	if _, err := c.AddFunc(cfg.CycleCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		touched, err := ledger.CycleRollover(ctx, cfg.RolloverCap)
		if err != nil {
			log.WithError(err).Error("billing cycle rollover failed")
			return
		}
		log.WithField("balances", touched).Info("billing cycle rollover completed")
	}); err != nil {
		log.Fatalf("invalid cycle cron spec %q: %v", cfg.CycleCronSpec, err)
	}
	c.Start()
	defer c.Stop()

	router := routes.SetupRouter(app, cfg.CORSOrigin)

	log.WithField("port", cfg.Port).Info("starting PRPM registry API")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
