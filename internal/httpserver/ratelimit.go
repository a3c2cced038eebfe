package httpserver

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/richhaase/code-review-crew/internal/terminal"
)

const (
	cleanupInterval = 5 * time.Minute
	staleClientAge  = 10 * time.Minute
)

// RateLimiter is a token bucket rate limiter that tracks clients by IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	logger  *terminal.Logger

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows perSecond requests per client with the given burst.
func NewRateLimiter(perSecond float64, burst int, logger *terminal.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		clients:     make(map[string]*clientLimiter),
		limit:       rate.Limit(perSecond),
		burst:       burst,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *RateLimiter) clientLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, ok := rl.clients[clientID]; ok {
		c.lastAccess = time.Now()
		return c.limiter
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients[clientID] = &clientLimiter{limiter: l, lastAccess: time.Now()}
	return l
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-staleClientAge))
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops limiters not used since threshold.
func (rl *RateLimiter) cleanup(threshold time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, c := range rl.clients {
		if c.lastAccess.Before(threshold) {
			delete(rl.clients, id)
		}
	}
}

// Allow reports whether a request from clientID may proceed, and if not,
// how many seconds the client should wait.
func (rl *RateLimiter) Allow(clientID string) (bool, int) {
	l := rl.clientLimiter(clientID)
	if l.Allow() {
		return true, 0
	}

	r := l.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, int(delay.Seconds()) + 1
}

// clientID identifies a client by remote host. RealIP runs earlier in the chain.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		ok, retryAfter := rl.Allow(id)
		if !ok {
			rl.logger.Logf(terminal.StyleWarning, "Rate limit exceeded for %s on %s", id, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
