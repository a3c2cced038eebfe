package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/richhaase/code-review-crew/internal/terminal"
)

// requestLogger logs one line per request through the crew logger.
func requestLogger(logger *terminal.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			style := terminal.StyleDim
			if status >= http.StatusInternalServerError {
				style = terminal.StyleError
			} else if status >= http.StatusBadRequest {
				style = terminal.StyleWarning
			}
			logger.Logf(style, "%s %s %d %s (%s)", r.Method, r.URL.Path, status,
				terminal.FormatDuration(time.Since(start)), middleware.GetReqID(r.Context()))
		})
	}
}
