package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sketchcode/backend/internal/models"
)

const DefaultModel = "gemini-2.5-flash"

const baseInstruction = `You are a senior front-end engineer. Reply with exactly one complete, self-contained HTML5 document.
Inline all CSS in a <style> element and any JavaScript in a <script> element. Use no external assets except public CDN fonts.
The page must be responsive. Do not explain the code.`

var modeInstructions = map[string]string{
	models.ModeSketch: baseInstruction + `
The attached image is a hand-drawn wireframe. Treat boxes, labels and arrows as layout intent and produce a polished page with that structure.`,
	models.ModeScreenshot: baseInstruction + `
The attached image is a screenshot of an existing page. Reproduce it as faithfully as possible: layout, spacing, colors, typography and copy.`,
	models.ModePrompt: baseInstruction + `
Build the page described by the user.`,
}

// Gemini generates HTML with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	instruction, ok := modeInstructions[req.Mode]
	if !ok {
		return "", fmt.Errorf("%w: unknown mode %q", ErrUpstreamGeneration, req.Mode)
	}
	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	m.SetTemperature(0.4)

	parts := make([]genai.Part, 0, 2)
	if len(req.Image) > 0 {
		parts = append(parts, genai.Blob{MIMEType: req.MimeType, Data: req.Image})
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = "Generate the page."
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classify(err)
	}
	return ExtractHTML(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// First candidate with content wins.
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

// classify maps transport errors to ErrUpstreamQuota or ErrUpstreamGeneration.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
	}
	if isQuota(err) {
		return fmt.Errorf("%w: %v", ErrUpstreamQuota, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
}

func isQuota(err error) bool {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ae.HTTPCode() == http.StatusTooManyRequests || ae.GRPCStatus().Code() == codes.ResourceExhausted {
			return true
		}
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusTooManyRequests {
		return true
	}
	return status.Code(err) == codes.ResourceExhausted
}
