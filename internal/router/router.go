// Package router maps the HTTP surface onto handlers and middleware.
package router

import (
	"net/http"

	"github.com/sketchcode/backend/internal/auth"
	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/creations"
	"github.com/sketchcode/backend/internal/dashboard"
	"github.com/sketchcode/backend/internal/handlers"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/reconciler"
)

type Deps struct {
	Auth      *auth.Handler
	Tokens    middleware.TokenValidator
	Generate  *handlers.GenerateHandler
	Credits   *handlers.CreditsHandler
	Download  *handlers.DownloadHandler
	Billing   *handlers.BillingHandler
	Creations *creations.Handler
	Webhooks  *reconciler.Handler
	Admin     *dashboard.Handler
	// GenerateLimit wraps POST /api/generate; nil disables rate limiting.
	GenerateLimit func(http.Handler) http.Handler
}

// New returns the API handler. Webhook routes are unauthenticated and
// verified by their provider; everything else under /api requires a bearer
// token, and /api/admin additionally the admin role.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	authed := middleware.JWTAuth(d.Tokens)
	user := func(h http.HandlerFunc) http.Handler { return authed(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authed(middleware.RequireAdmin(h)) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", d.Auth.Login)
	mux.Handle("DELETE /api/account", user(d.Auth.DeleteAccount))

	generate := http.Handler(http.HandlerFunc(d.Generate.Generate))
	if d.GenerateLimit != nil {
		generate = d.GenerateLimit(generate)
	}
	// Auth runs first so the limiter keys on the account.
	mux.Handle("POST /api/generate", authed(generate))

	mux.Handle("GET /api/credits/balance", user(d.Credits.Balance))
	mux.Handle("GET /api/credits/history", user(d.Credits.History))
	mux.Handle("POST /api/download", user(d.Download.Download))

	mux.Handle("GET /api/creations", user(d.Creations.List))
	mux.Handle("GET /api/creations/{id}", user(d.Creations.Get))
	mux.Handle("DELETE /api/creations/{id}", user(d.Creations.Delete))

	mux.Handle("POST /api/billing/checkout/one-off", user(d.Billing.OneOff))
	mux.Handle("POST /api/billing/checkout/subscription", user(d.Billing.Subscription))

	mux.HandleFunc("POST /api/webhook", d.Webhooks.Webhook(billing.ProviderStripe))
	mux.HandleFunc("POST /api/webhook/midtrans", d.Webhooks.Webhook(billing.ProviderMidtrans))

	mux.Handle("GET /api/admin/users", admin(d.Admin.ListUsers))
	mux.Handle("GET /api/admin/stats", admin(d.Admin.Stats))
	mux.Handle("DELETE /api/admin/users/{id}", admin(d.Admin.DeleteUser))
	mux.Handle("DELETE /api/admin/creations/{id}", admin(d.Admin.DeleteCreation))
	mux.Handle("GET /api/admin/transactions/export", admin(d.Admin.ExportTransactions))

	return mux
}
