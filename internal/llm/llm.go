// Package llm defines the text generation capability that review agents call
// and the provider clients that implement it.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors returned by generators. Callers classify failures with errors.Is.
var (
	// ErrBlocked means the provider refused to return content for safety reasons.
	ErrBlocked = errors.New("response blocked by safety settings")
	// ErrNoAPIKey means the provider has no credentials configured.
	ErrNoAPIKey = errors.New("no API key configured")
	// ErrUnauthorized means the provider rejected the configured credentials.
	ErrUnauthorized = errors.New("authentication failed")
	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidResponse means the provider answered with no usable text.
	ErrInvalidResponse = errors.New("invalid response")
)

// Harm categories and thresholds understood by the Gemini API.
const (
	HarmDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmSexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"

	BlockNone = "BLOCK_NONE"
)

// SafetySetting relaxes or tightens one provider safety filter.
type SafetySetting struct {
	Category  string
	Threshold string
}

// Params are per-request generation parameters. Zero fields mean
// "provider default" and are left out of the request.
type Params struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	Safety          []SafetySetting
}

// IsZero reports whether p leaves every parameter at the provider default.
func (p Params) IsZero() bool {
	return p.Temperature == 0 && p.TopP == 0 && p.TopK == 0 && p.MaxOutputTokens == 0 && len(p.Safety) == 0
}

// Request is a single prompt sent to a model.
type Request struct {
	Prompt string
	Params Params
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrUnauthorized)
}
