package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenAIServer(t *testing.T, status int, body string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if inspect != nil {
			inspect(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatResponse(content, finish string) string {
	data, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
	})
	return string(data)
}

func TestOpenAI_Generate_Success(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, chatResponse(`{"severity":"HIGH"}`, "stop"), func(req map[string]any) {
		if req["model"] != "gpt-test" {
			t.Errorf("model = %v", req["model"])
		}
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("response_format = %v", req["response_format"])
		}
		if req["max_tokens"] != float64(1024) {
			t.Errorf("max_tokens = %v", req["max_tokens"])
		}
	})

	o := NewOpenAI("gpt-test", "key", srv.URL)
	got, err := o.Generate(context.Background(), Request{Prompt: "p", Params: Params{MaxOutputTokens: 1024}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"severity":"HIGH"}` {
		t.Errorf("Generate() = %q", got)
	}
}

func TestOpenAI_ReasoningModelUsesCompletionTokens(t *testing.T) {
	o := NewOpenAI("o3-mini", "key", "")
	req := o.buildRequest(Request{Params: Params{MaxOutputTokens: 512}})
	if req.MaxCompletionTokens != 512 || req.MaxTokens != 0 {
		t.Errorf("MaxCompletionTokens = %d, MaxTokens = %d", req.MaxCompletionTokens, req.MaxTokens)
	}
}

func TestOpenAI_Generate_ContentFilter(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, chatResponse("", "content_filter"), nil)
	_, err := NewOpenAI("gpt-test", "key", srv.URL).Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("Generate() error = %v, want ErrBlocked", err)
	}
}

func TestOpenAI_Generate_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := `{"error":{"message":"nope","type":"error","code":"x"}}`
			srv := newOpenAIServer(t, tc.status, body, nil)
			_, err := NewOpenAI("gpt-test", "key", srv.URL).Generate(context.Background(), Request{Prompt: "p"})
			if !errors.Is(err, tc.want) {
				t.Errorf("Generate() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOpenAI_Generate_NoAPIKey(t *testing.T) {
	_, err := NewOpenAI("", "", "").Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Generate() error = %v, want ErrNoAPIKey", err)
	}
}
