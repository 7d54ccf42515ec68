package services

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sketchcode/backend/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Generation deadlines per mode. Image modes send a large inline blob.
const (
	SketchDeadline     = 90 * time.Second
	ScreenshotDeadline = 90 * time.Second
	PromptDeadline     = 60 * time.Second
)

// ErrValidation can be used with errors.Is to detect request validation failures.
var ErrValidation = errors.New("validation failed")

// Validator checks generate request bodies against the JSON Schema of their mode.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles the embedded per-mode schemas.
func NewValidator() (*Validator, error) {
	sub, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	return NewValidatorFS(sub)
}

// NewValidatorFS compiles every *.json file at the root of fsys; the file
// name without extension is the mode it validates.
func NewValidatorFS(fsys fs.FS) (*Validator, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		mode := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		id := "https://sketchcode.dev/schemas/generate." + mode
		schemas[mode], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", mode, err)
		}
	}
	if len(schemas) == 0 {
		return nil, errors.New("no schemas found")
	}
	return &Validator{schemas: schemas}, nil
}

// Modes lists the modes with a compiled schema.
func (v *Validator) Modes() []string {
	out := make([]string, 0, len(v.schemas))
	for m := range v.schemas {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// GetDeadline returns how long a generation in the given mode may run.
func (v *Validator) GetDeadline(mode string) (time.Duration, error) {
	switch mode {
	case models.ModeSketch:
		return SketchDeadline, nil
	case models.ModeScreenshot:
		return ScreenshotDeadline, nil
	case models.ModePrompt:
		return PromptDeadline, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}
}

// ValidateRequest performs hard reject: body must be JSON matching the
// schema named by its own "mode" field.
func (v *Validator) ValidateRequest(_ context.Context, body json.RawMessage) (string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: body must be an object", ErrValidation)
	}
	mode, _ := obj["mode"].(string)
	schema, ok := v.schemas[mode]
	if !ok {
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}
	if err := schema.Validate(doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return mode, nil
}
