package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/middleware"
)

// callerID returns the authenticated account id, writing 401 when absent.
func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := middleware.AccountIDFromCtx(r.Context())
	if id == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
