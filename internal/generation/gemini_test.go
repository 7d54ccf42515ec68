package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"http 429", &googleapi.Error{Code: 429, Message: "Resource has been exhausted"}, ErrUpstreamQuota},
		{"wrapped http 429", fmt.Errorf("call: %w", &googleapi.Error{Code: 429}), ErrUpstreamQuota},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), ErrUpstreamQuota},
		{"http 500", &googleapi.Error{Code: 500}, ErrUpstreamGeneration},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), ErrUpstreamGeneration},
		{"deadline", context.DeadlineExceeded, ErrUpstreamGeneration},
		{"other", errors.New("boom"), ErrUpstreamGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("<html>"), genai.Text("</html>")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	assert.Equal(t, "<html></html>", responseText(resp))
	assert.Empty(t, responseText(nil))
}

func TestModeInstructionsCoverAllModes(t *testing.T) {
	for _, mode := range []string{"sketch", "screenshot", "prompt"} {
		assert.Contains(t, modeInstructions, mode)
	}
}
