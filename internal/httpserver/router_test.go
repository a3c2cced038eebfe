package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/history"
	"github.com/richhaase/code-review-crew/internal/service"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

type stubService struct {
	reviewed  []string
	reviewErr error
	records   map[string]*history.Record
	listErr   error
}

func (s *stubService) Review(_ context.Context, code string) (service.Result, error) {
	if s.reviewErr != nil {
		return service.Result{}, s.reviewErr
	}
	s.reviewed = append(s.reviewed, code)
	var results domain.Results
	results.Set("SecurityAgent", domain.Finding{Severity: domain.SeverityHigh, Issues: []domain.Item{domain.TextItem("eval of input")}})
	results.Set("StyleAgent", domain.Finding{Severity: domain.SeverityLow})
	return service.Result{
		Run:      domain.ReviewRun{ID: "rev-1", Results: results},
		Markdown: "## Code Review Results\n\n",
	}, nil
}

func (s *stubService) Get(_ context.Context, id string) (*history.Record, error) {
	if s.records == nil {
		return nil, service.ErrHistoryDisabled
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	return rec, nil
}

func (s *stubService) List(context.Context, int, int) ([]*history.Record, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if s.records == nil {
		return nil, service.ErrHistoryDisabled
	}
	out := []*history.Record{}
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func newTestRouter(t *testing.T, svc ReviewService, opts Options) http.Handler {
	t.Helper()
	h, stop := NewRouter(svc, terminal.NewLoggerTo(&bytes.Buffer{}, false), opts)
	t.Cleanup(stop)
	return h
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestReview_Success(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(t, svc, Options{})

	rec := do(h, http.MethodPost, "/review", `{"code":"eval(input())"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var resp struct {
		ID       string         `json:"id"`
		Results  string         `json:"results"`
		Findings domain.Results `json:"findings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "rev-1" || resp.Results != "## Code Review Results\n\n" {
		t.Errorf("resp = %+v", resp)
	}
	if got := strings.Join(resp.Findings.Names(), ","); got != "SecurityAgent,StyleAgent" {
		t.Errorf("findings order = %s", got)
	}
	if !strings.Contains(rec.Body.String(), `"findings":{"SecurityAgent"`) {
		t.Errorf("findings should be an ordered object: %s", rec.Body.String())
	}
	if len(svc.reviewed) != 1 || svc.reviewed[0] != "eval(input())" {
		t.Errorf("reviewed = %v", svc.reviewed)
	}
}

func TestReview_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "No code provided"},
		{"missing code", `{}`, "No code provided"},
		{"empty code", `{"code":""}`, "No code provided"},
		{"whitespace code", `{"code":"  \n"}`, "No code provided"},
		{"malformed json", `{"code":`, "Invalid JSON body"},
		{"wrong type", `{"code":42}`, "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rec := do(newTestRouter(t, svc, Options{}), http.MethodPost, "/review", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := decodeError(t, rec); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
			if len(svc.reviewed) != 0 {
				t.Error("service should not be called")
			}
		})
	}
}

func TestReview_BodyTooLarge(t *testing.T) {
	h := newTestRouter(t, &stubService{}, Options{MaxBodyBytes: 16})
	rec := do(h, http.MethodPost, "/review", `{"code":"`+strings.Repeat("x", 64)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReview_ServiceError(t *testing.T) {
	h := newTestRouter(t, &stubService{reviewErr: errors.New("encode report: boom")}, Options{})
	rec := do(h, http.MethodPost, "/review", `{"code":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "encode report: boom" {
		t.Errorf("error = %q", got)
	}
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(t, &stubService{}, Options{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryEndpoints(t *testing.T) {
	svc := &stubService{records: map[string]*history.Record{"abc": {ID: "abc", Markdown: "md"}}}
	h := newTestRouter(t, svc, Options{})

	rec := do(h, http.MethodGet, "/reviews/abc", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"abc"`) {
		t.Errorf("get = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/reviews/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing = %d", rec.Code)
	}

	rec = do(h, http.MethodGet, "/reviews?page=1&page_size=5", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "[") {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryEndpoints_Disabled(t *testing.T) {
	h := newTestRouter(t, &stubService{}, Options{})
	for _, path := range []string{"/reviews", "/reviews/abc"} {
		rec := do(h, http.MethodGet, path, "")
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("%s = %d", path, rec.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	h := newTestRouter(t, &stubService{}, Options{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/review", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allowed origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/review", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allowed origin %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, &stubService{}, Options{RateLimit: 0.001, Burst: 2})

	for i := range 2 {
		if rec := do(h, http.MethodPost, "/review", `{"code":"x"}`); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(h, http.MethodPost, "/review", `{"code":"x"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Health checks are not limited.
	if rec := do(h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
