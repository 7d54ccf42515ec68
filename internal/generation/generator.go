// Package generation turns a prompt and an optional image into a single
// HTML document by calling a generative model.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrUpstreamGeneration covers any failed or unusable model response.
	ErrUpstreamGeneration = errors.New("generation failed")
	// ErrUpstreamQuota is returned when the model API rejects the call for quota or rate reasons.
	ErrUpstreamQuota = errors.New("upstream quota exceeded")
)

type Request struct {
	Prompt   string
	Image    []byte
	MimeType string
	Mode     string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
