package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/database"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
)

// RateLimiter caps requests per client IP and endpoint inside a fixed
// window. Counters live in the configured RateCounter: Redis when several
// instances share the limit, memory otherwise.
//
// Key pattern: "ratelimit:{ip}:{endpoint}" with a TTL equal to the window.
type RateLimiter struct {
	counter        database.RateCounter
	requestsPerMin int
	window         time.Duration
}

// NewRateLimiter creates a limiter allowing requestsPerMin requests per window.
//
// Example:
//
//	limiter := middleware.NewRateLimiter(redisDB, 60, time.Minute)
//	r.With(limiter.Limit("gate")).Post("/app/keys", handler.PressKey)
func NewRateLimiter(counter database.RateCounter, requestsPerMin int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter:        counter,
		requestsPerMin: requestsPerMin,
		window:         window,
	}
}

// WithLimit returns a limiter sharing the counter and window but allowing a
// different number of requests. The passcode keypad gets a tighter budget
// than the rest of the API this way.
func (rl *RateLimiter) WithLimit(requestsPerMin int) *RateLimiter {
	return &RateLimiter{counter: rl.counter, requestsPerMin: requestsPerMin, window: rl.window}
}

// Limit rate limits one endpoint. Each endpoint name gets its own counter.
//
// Headers set on every response:
//   - X-RateLimit-Limit
//   - X-RateLimit-Remaining
//
// Retry-After is added on 429. Counter errors let the request through.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			count, err := rl.counter.IncrementRateLimit(r.Context(), ip, endpoint, rl.window)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("Failed to check rate limit")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))

			if count > int64(rl.requestsPerMin) {
				log.Warn().
					Str("ip", ip).
					Str("endpoint", endpoint).
					Int64("count", count).
					Msg("Rate limit exceeded")

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				utils.RespondWithErrorCode(w, r, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.requestsPerMin-int(count)))

			next.ServeHTTP(w, r)
		})
	}
}
