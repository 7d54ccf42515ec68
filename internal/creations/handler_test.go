package creations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Creation
}

func newMemStore(cs ...*models.Creation) *memStore {
	m := &memStore{rows: map[uuid.UUID]*models.Creation{}}
	for _, c := range cs {
		cp := *c
		m.rows[c.ID] = &cp
	}
	return m
}

func (m *memStore) GetOwned(_ context.Context, id, accountID uuid.UUID) (*models.Creation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.AccountID != accountID {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*models.Creation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Creation{}
	for _, c := range m.rows {
		if c.AccountID == accountID {
			cp := *c
			cp.HTML = ""
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) DeleteOwned(_ context.Context, id, accountID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.AccountID != accountID {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func newTestMux(store Store) *http.ServeMux {
	h := NewHandler(NewService(store), nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/creations", h.List)
	mux.HandleFunc("GET /api/creations/{id}", h.Get)
	mux.HandleFunc("DELETE /api/creations/{id}", h.Delete)
	return mux
}

func serve(mux http.Handler, method, path string, accountID uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(middleware.WithAccount(req.Context(), accountID, models.RoleUser))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGet_HidesHTMLUntilPurchased(t *testing.T) {
	owner := uuid.New()
	locked := &models.Creation{ID: uuid.New(), AccountID: owner, Mode: "prompt", HTML: "<html>secret</html>", CreatedAt: time.Now()}
	now := time.Now()
	bought := &models.Creation{ID: uuid.New(), AccountID: owner, Mode: "prompt", HTML: "<html>mine</html>", Purchased: true, PurchasedAt: &now, CreatedAt: now}
	mux := newTestMux(newMemStore(locked, bought))

	rec := serve(mux, http.MethodGet, "/api/creations/"+locked.ID.String(), owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CreationResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.HTML != "" || resp.Purchased {
		t.Errorf("unpurchased creation leaked html: %+v", resp)
	}

	rec = serve(mux, http.MethodGet, "/api/creations/"+bought.ID.String(), owner)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.HTML != "<html>mine</html>" || resp.PurchasedAt == nil {
		t.Errorf("purchased creation missing html: %+v", resp)
	}
}

func TestGet_OtherAccountIsNotFound(t *testing.T) {
	c := &models.Creation{ID: uuid.New(), AccountID: uuid.New()}
	mux := newTestMux(newMemStore(c))

	rec := serve(mux, http.MethodGet, "/api/creations/"+c.ID.String(), uuid.New())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = serve(mux, http.MethodGet, "/api/creations/not-a-uuid", uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListAndDelete(t *testing.T) {
	owner := uuid.New()
	a := &models.Creation{ID: uuid.New(), AccountID: owner, HTML: "<html></html>"}
	b := &models.Creation{ID: uuid.New(), AccountID: owner}
	other := &models.Creation{ID: uuid.New(), AccountID: uuid.New()}
	store := newMemStore(a, b, other)
	mux := newTestMux(store)

	rec := serve(mux, http.MethodGet, "/api/creations", owner)
	var list []CreationResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 2 {
		t.Fatalf("expected 2 creations, got %d", len(list))
	}

	rec = serve(mux, http.MethodDelete, "/api/creations/"+other.ID.String(), owner)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleting another account's creation: expected 404, got %d", rec.Code)
	}
	rec = serve(mux, http.MethodDelete, "/api/creations/"+a.ID.String(), owner)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := store.rows[a.ID]; ok {
		t.Error("creation still present after delete")
	}
}

func TestUnauthenticated(t *testing.T) {
	rec := serve(newTestMux(newMemStore()), http.MethodGet, "/api/creations", uuid.Nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
