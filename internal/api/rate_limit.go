package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/ratelimit"
)

// RateLimiter spends cost tokens from subject's bucket.
type RateLimiter interface {
	AllowN(ctx context.Context, subject string, cost int) (ratelimit.Decision, error)
}

// actionCosts prices each mutating route by the work it triggers. Every user
// draws from a single bucket, so one conversion spends as much as five undos.
var actionCosts = map[string]int{
	"/v1/sessions":              1,
	"/v1/sessions/{id}":         1,
	"/v1/sessions/{id}/image":   3,
	"/v1/sessions/{id}/apply":   2,
	"/v1/sessions/{id}/stroke":  1,
	"/v1/sessions/{id}/undo":    1,
	"/v1/sessions/{id}/resize":  3,
	"/v1/sessions/{id}/convert": 5,
}

func actionCost(route string) int {
	if cost, ok := actionCosts[route]; ok {
		return cost
	}
	return 1
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		subject := strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader))
		if subject == "" {
			subject = clientHost(r)
		}
		route := routeLabel(r.URL.Path)
		cost := actionCost(route)

		decision, err := s.rateLimiter.AllowN(r.Context(), subject, cost)
		if err != nil {
			s.logger.Printf("rate limiter check failed subject=%s route=%s cost=%d err=%v", subject, route, cost, err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(route).Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// shouldRateLimit covers the mutating session routes; reads stay unlimited.
func shouldRateLimit(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/v1/sessions")
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "anonymous"
	}
	return host
}
