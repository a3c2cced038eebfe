// Package httpserver exposes the review service over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/history"
	"github.com/richhaase/code-review-crew/internal/service"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// DefaultMaxBodyBytes caps the size of a review request body.
const DefaultMaxBodyBytes = 1 << 20

// ReviewService is the behavior the router needs. *service.Service implements it.
type ReviewService interface {
	Review(ctx context.Context, code string) (service.Result, error)
	Get(ctx context.Context, id string) (*history.Record, error)
	List(ctx context.Context, page, pageSize int) ([]*history.Record, error)
}

// Options configures the router.
type Options struct {
	CORSOrigins  []string
	RateLimit    float64 // requests per second per client; 0 disables limiting
	Burst        int
	MaxBodyBytes int64
}

type Router struct {
	svc     ReviewService
	logger  *terminal.Logger
	maxBody int64
}

// NewRouter builds the HTTP handler. The returned stop function releases the
// rate limiter's background cleanup.
func NewRouter(svc ReviewService, logger *terminal.Logger, opts Options) (http.Handler, func()) {
	r := &Router{svc: svc, logger: logger, maxBody: opts.MaxBodyBytes}
	if r.maxBody <= 0 {
		r.maxBody = DefaultMaxBodyBytes
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	stop := func() {}
	if opts.RateLimit > 0 {
		limiter := NewRateLimiter(opts.RateLimit, opts.Burst, logger)
		stop = limiter.Stop
		mux.With(limiter.Middleware).Post("/review", r.wrap(r.handleReview))
	} else {
		mux.Post("/review", r.wrap(r.handleReview))
	}

	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Get("/reviews", r.wrap(r.handleList))
	mux.Get("/reviews/{id}", r.wrap(r.handleGet))

	return mux, stop
}

// httpError carries a status code for the client.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error {
	return &httpError{status: http.StatusBadRequest, message: msg}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var he *httpError
		switch {
		case errors.As(err, &he):
			writeError(w, he.status, he.message)
		case errors.Is(err, history.ErrNotFound):
			writeError(w, http.StatusNotFound, "review not found")
		case errors.Is(err, service.ErrHistoryDisabled):
			writeError(w, http.StatusNotImplemented, err.Error())
		default:
			r.logger.Logf(terminal.StyleError, "%s %s: %v", req.Method, req.URL.Path, err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

type reviewRequest struct {
	Code string `json:"code"`
}

type reviewResponse struct {
	ID         string         `json:"id"`
	Results    string         `json:"results"`
	Findings   domain.Results `json:"findings"`
	Cached     bool           `json:"cached,omitempty"`
	ArchiveURL string         `json:"archive_url,omitempty"`
}

// POST /review
// Body: {"code": "<source>"}
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) error {
	var body reviewRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err := dec.Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &httpError{status: http.StatusRequestEntityTooLarge, message: "Request body too large"}
		case errors.Is(err, io.EOF):
			return badRequest("No code provided")
		default:
			return badRequest("Invalid JSON body")
		}
	}
	if strings.TrimSpace(body.Code) == "" {
		return badRequest("No code provided")
	}

	result, err := r.svc.Review(req.Context(), body.Code)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, reviewResponse{
		ID:         result.Run.ID,
		Results:    result.Markdown,
		Findings:   result.Run.Results,
		Cached:     result.Run.Cached,
		ArchiveURL: result.ArchiveURL,
	})
	return nil
}

// GET /reviews?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.List(req.Context(), page, size)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /reviews/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
