package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.0-flash"
	// DefaultGeminiBaseURL is the public Generative Language API root.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Gemini calls the Generative Language REST API.
type Gemini struct {
	Model      string
	APIKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGemini creates a Gemini client for model.
func NewGemini(model, apiKey string) *Gemini {
	return NewGeminiWithClient(model, apiKey, "", nil)
}

// NewGeminiWithClient creates a Gemini client against a custom API root and HTTP client.
func NewGeminiWithClient(model, apiKey, baseURL string, client *http.Client) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gemini{
		Model:      model,
		APIKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []geminiSafetySetting   `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// blockedFinishReasons are candidate finish reasons that mean content was withheld.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

func buildGeminiRequest(req Request) geminiRequest {
	g := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}

	p := req.Params
	var cfg geminiGenerationConfig
	if p.Temperature != 0 {
		cfg.Temperature = &p.Temperature
	}
	if p.TopP != 0 {
		cfg.TopP = &p.TopP
	}
	if p.TopK != 0 {
		cfg.TopK = &p.TopK
	}
	if p.MaxOutputTokens != 0 {
		cfg.MaxOutputTokens = &p.MaxOutputTokens
	}
	if cfg != (geminiGenerationConfig{}) {
		g.GenerationConfig = &cfg
	}

	for _, s := range p.Safety {
		g.SafetySettings = append(g.SafetySettings, geminiSafetySetting(s))
	}
	return g
}

// Generate sends the prompt to generateContent and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("gemini: %w (set GOOGLE_API_KEY)", ErrNoAPIKey)
	}

	body, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError("gemini", resp); err != nil {
		return "", err
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("gemini: %w: %v", ErrInvalidResponse, err)
	}

	if gResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: %w (%s)", ErrBlocked, gResp.PromptFeedback.BlockReason)
	}
	if len(gResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w: no candidates", ErrInvalidResponse)
	}

	candidate := gResp.Candidates[0]
	if blockedFinishReasons[candidate.FinishReason] {
		return "", fmt.Errorf("gemini: %w (%s)", ErrBlocked, candidate.FinishReason)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini: %w: empty candidate", ErrInvalidResponse)
	}
	return text.String(), nil
}

// statusError maps a non-200 HTTP response to a classified error.
func statusError(provider string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(snippet))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %s", provider, ErrRateLimited, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %s", provider, ErrUnauthorized, detail)
	default:
		return fmt.Errorf("%s API returned status %s: %s", provider, resp.Status, detail)
	}
}
