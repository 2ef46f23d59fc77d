package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/httputil"
)

// KeyFunc picks the bucket a request counts against.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. A nil limiter disables throttling.
func Middleware(limiter *SlidingWindow, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			result := limiter.Allow(k)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				seconds := int(math.Ceil(result.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
				if logger != nil {
					logger.WarnContext(r.Context(), "request throttled", "key", k, "path", r.URL.Path)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many attempts, please wait and try again"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
