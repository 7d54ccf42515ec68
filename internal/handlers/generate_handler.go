package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/generation"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/respond"
	"github.com/sketchcode/backend/internal/services"
)

// maxGenerateBody covers a 10 MB image after base64 expansion.
const maxGenerateBody = 15 << 20

// RequestValidator checks a raw generate body and returns its mode.
type RequestValidator interface {
	ValidateRequest(ctx context.Context, body json.RawMessage) (string, error)
}

type CreationGenerator interface {
	Generate(ctx context.Context, accountID uuid.UUID, req generation.Request) (*models.Creation, error)
}

// GenerateHandler serves POST /api/generate.
type GenerateHandler struct {
	Validator RequestValidator
	Generator CreationGenerator
	Logger    *slog.Logger
}

type generateRequest struct {
	Mode       string `json:"mode"`
	Prompt     string `json:"prompt"`
	FileBase64 string `json:"file_base64"`
	MimeType   string `json:"mime_type"`
}

type generateResponse struct {
	HTML       string `json:"html"`
	CreationID string `json:"creation_id"`
}

// Generate: Auth -> Validate schema -> Decode image -> Model call -> Store creation.
// No credit is charged here.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err != nil {
		http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
		return
	}
	if _, err := h.Validator.ValidateRequest(r.Context(), body); err != nil {
		if errors.Is(err, services.ErrValidation) {
			respond.JSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("validate generate request", "error", err)
		http.Error(w, `{"error":"request validation failed"}`, http.StatusBadRequest)
		return
	}

	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	genReq := generation.Request{Prompt: req.Prompt, Mode: req.Mode, MimeType: req.MimeType}
	if req.FileBase64 != "" {
		genReq.Image, err = decodeImage(req.FileBase64)
		if err != nil {
			http.Error(w, `{"error":"file_base64 is not valid base64"}`, http.StatusBadRequest)
			return
		}
	}

	c, err := h.Generator.Generate(r.Context(), accountID, genReq)
	if err != nil {
		switch {
		case errors.Is(err, generation.ErrUpstreamQuota):
			http.Error(w, `{"error":"UPSTREAM_QUOTA_EXCEEDED"}`, http.StatusServiceUnavailable)
		case errors.Is(err, generation.ErrUpstreamGeneration), errors.Is(err, context.DeadlineExceeded):
			http.Error(w, `{"error":"GENERATION_FAILED"}`, http.StatusBadGateway)
		default:
			h.Logger.Error("generate", "account_id", accountID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	respond.JSON(w, http.StatusOK, generateResponse{HTML: c.HTML, CreationID: c.ID.String()})
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}
