// Package dashboard serves the admin API.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/respond"
)

type AccountStore interface {
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	PlanCounts(ctx context.Context) (map[string]int, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type CreationStore interface {
	Counts(ctx context.Context) (total, purchased int, err error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type CreditStore interface {
	TotalsByReason(ctx context.Context) (map[string]int, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.CreditTransaction, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
	defaultExport   = 30 * 24 * time.Hour
)

type Handler struct {
	accounts  AccountStore
	creations CreationStore
	credits   CreditStore
	log       *slog.Logger
	now       func() time.Time
}

func NewHandler(accounts AccountStore, creations CreationStore, credits CreditStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, creations: creations, credits: credits, log: log, now: time.Now}
}

type userResponse struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Plan      string     `json:"plan"`
	Credits   int        `json:"credits"`
	ProUntil  *time.Time `json:"pro_until,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GET /api/admin/users?limit=&offset=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := h.accounts.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("list users failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	out := make([]userResponse, 0, len(list))
	for _, a := range list {
		out = append(out, userResponse{
			ID: a.ID, Email: a.Email, Role: a.Role, Plan: a.Plan,
			Credits: a.Credits, ProUntil: a.ProUntil, CreatedAt: a.CreatedAt,
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"users": out, "limit": limit, "offset": offset})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// GET /api/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	plans, err := h.accounts.PlanCounts(r.Context())
	if err != nil {
		h.log.Error("plan counts failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	total, purchased, err := h.creations.Counts(r.Context())
	if err != nil {
		h.log.Error("creation counts failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	totals, err := h.credits.TotalsByReason(r.Context())
	if err != nil {
		h.log.Error("credit totals failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	users := 0
	for _, n := range plans {
		users += n
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"users":               users,
		"users_by_plan":       plans,
		"creations":           total,
		"creations_purchased": purchased,
		"credits_by_reason":   totals,
	})
}

// DELETE /api/admin/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, "user", h.accounts.Delete)
}

// DELETE /api/admin/creations/{id}
func (h *Handler) DeleteCreation(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, "creation", h.creations.Delete)
}

func (h *Handler) deleteByID(w http.ResponseWriter, r *http.Request, what string, del func(context.Context, uuid.UUID) (bool, error)) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"invalid %s id"}`, what), http.StatusBadRequest)
		return
	}
	ok, err := del(r.Context(), id)
	if err != nil {
		h.log.Error("admin delete failed", "kind", what, "id", id, "error", err)
		http.Error(w, `{"error":"delete failed"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf(`{"error":"%s not found"}`, what), http.StatusNotFound)
		return
	}
	h.log.Info("admin deleted record", "kind", what, "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/admin/transactions/export?from=2026-01-01&to=2026-02-01
// Dates are UTC days; to is exclusive. Defaults to the last 30 days.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	to := h.now().UTC()
	from := to.Add(-defaultExport)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.DateOnly, v); err != nil {
			http.Error(w, `{"error":"from must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.DateOnly, v); err != nil {
			http.Error(w, `{"error":"to must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
	}
	if !from.Before(to) {
		http.Error(w, `{"error":"from must be before to"}`, http.StatusBadRequest)
		return
	}

	entries, err := h.credits.ListBetween(r.Context(), from, to)
	if err != nil {
		h.log.Error("list transactions failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	f, err := LedgerWorkbook(entries)
	if err != nil {
		h.log.Error("build workbook failed", "error", err)
		http.Error(w, `{"error":"export failed"}`, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	name := fmt.Sprintf("credit_ledger_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	if err := f.Write(w); err != nil {
		h.log.Error("write workbook failed", "error", err)
	}
}
