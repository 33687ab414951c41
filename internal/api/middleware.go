package api

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/shehryarbajwa/checkin-runner/internal/ratelimit"
	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

const maxTriggerBody = 1 << 20

// RateLimitMiddleware charges each trigger to the account named in its
// body, or the limiter's fallback account when the body names none
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	limit := strconv.Itoa(limiter.PerHour())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := peekUsername(w, r)
			if err != nil {
				http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
				return
			}

			account := limiter.Key(username)
			decision := limiter.Take(account)

			w.Header().Set("X-RateLimit-Limit", limit)
			if !decision.Allowed {
				w.Header().Set("X-RateLimit-Remaining", "0")
				if decision.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
				}
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":   "Rate limit exceeded. Maximum " + limit + " runs per hour per account.",
					"account": account,
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// peekUsername reads the username from a trigger body and puts the body
// back for the handler. An empty body names no account. A body that is not
// valid JSON is left for the handler to reject.
func peekUsername(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTriggerBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var req models.CreateRunRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", nil
	}
	return req.Username, nil
}
