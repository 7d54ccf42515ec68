package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/sketchcode/backend/internal/auth"
	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/internal/creations"
	"github.com/sketchcode/backend/internal/dashboard"
	"github.com/sketchcode/backend/internal/download"
	"github.com/sketchcode/backend/internal/events"
	"github.com/sketchcode/backend/internal/execution"
	"github.com/sketchcode/backend/internal/generation"
	"github.com/sketchcode/backend/internal/handlers"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/reconciler"
	"github.com/sketchcode/backend/internal/repository"
	"github.com/sketchcode/backend/internal/router"
	"github.com/sketchcode/backend/internal/services"
)

type app struct {
	handler   http.Handler
	workers   *river.Workers
	periodic  []*river.PeriodicJob
	providers []string
}

// buildApp wires repositories, services and handlers. Every balance
// mutation goes through the one ledger.Service built here.
func buildApp(cfg *config.Config, pool *pgxpool.Pool, pub events.Publisher, limiter middleware.Limiter, gen generation.Generator, logger *slog.Logger) (*app, error) {
	accountRepo := repository.NewAccountRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	eventRepo := repository.NewEventRepo()
	creationRepo := creations.NewRepository(pool)

	ledgerSvc := ledger.NewService(pool, accountRepo, creditRepo, pub, logger)

	authSvc := auth.NewService(pool, accountRepo, ledgerSvc, cfg.Auth.JWTSecret, cfg.Auth.AdminEmails, logger)

	validator, err := services.NewValidator()
	if err != nil {
		return nil, err
	}
	genSvc := generation.NewService(gen, creationRepo, validator, logger)

	// Stripe is the default provider when both are configured.
	var providers []billing.Provider
	if cfg.Stripe.SecretKey != "" {
		providers = append(providers, billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret))
	}
	if cfg.Midtrans.ServerKey != "" {
		providers = append(providers, billing.NewMidtransProvider(cfg.Midtrans.ServerKey, cfg.Midtrans.Production, paymentRepo))
	}
	registry := billing.NewRegistry(providers...)
	checkout := billing.NewCheckoutService(registry, paymentRepo, cfg.Prices(),
		cfg.App.FrontendURL+"/billing/success", cfg.App.FrontendURL+"/billing/cancel", logger)
	reconcileSvc := reconciler.NewService(pool, eventRepo, paymentRepo, ledgerSvc, logger)

	gate := download.NewGate(pool, creationRepo, ledgerSvc, logger)

	workers := river.NewWorkers()
	execution.Register(workers,
		execution.NewExpireProPlansWorker(accountRepo, ledgerSvc, logger),
		execution.NewAuditLedgerWorker(creditRepo, logger),
	)

	h := router.New(router.Deps{
		Auth:          auth.NewHandler(authSvc, logger),
		Tokens:        authSvc,
		Generate:      &handlers.GenerateHandler{Validator: validator, Generator: genSvc, Logger: logger},
		Credits:       &handlers.CreditsHandler{Ledger: ledgerSvc, Logger: logger},
		Download:      &handlers.DownloadHandler{Gate: gate, Logger: logger},
		Billing:       &handlers.BillingHandler{Accounts: ledgerSvc, Checkout: checkout, Logger: logger},
		Creations:     creations.NewHandler(creations.NewService(creationRepo), logger),
		Webhooks:      reconciler.NewHandler(reconcileSvc, registry, logger),
		Admin:         dashboard.NewHandler(accountRepo, creationRepo, creditRepo, logger),
		GenerateLimit: middleware.RateLimit(limiter, "generate", logger),
	})

	return &app{handler: h, workers: workers, periodic: execution.PeriodicJobs(), providers: registry.Names()}, nil
}
