package ghclient

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"stargazer/internal/tokens"
)

// RateLimitError is the recoverable "quota spent" signal. The caller waits
// until Reset (or switches credentials) and retries the same page.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.Reset.UTC().Format(time.RFC3339))
}

// isRateLimited matches the API's two rate-limit shapes: a plain 429, or a
// 403 with the remaining-quota header at zero.
func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// quotaFromHeaders builds a quota snapshot from X-RateLimit-* headers.
func quotaFromHeaders(h http.Header) tokens.Quota {
	rem := h.Get("X-RateLimit-Remaining")
	reset := h.Get("X-RateLimit-Reset")
	if rem == "" || reset == "" {
		return tokens.Quota{}
	}
	n, err := strconv.Atoi(rem)
	if err != nil {
		return tokens.Quota{}
	}
	ts, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return tokens.Quota{}
	}
	return tokens.Quota{Remaining: n, Reset: time.Unix(ts, 0).UTC(), Known: true}
}

// resetFromHeaders returns the reset time, falling back to a minute out when
// the header is absent or unparsable.
func resetFromHeaders(h http.Header, now time.Time) time.Time {
	if ts, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC()
	}
	return now.Add(time.Minute)
}

// newDefaultLimiter creates a request pacer using env overrides if present.
func newDefaultLimiter() *rate.Limiter {
	rps := 5.0
	burst := 10
	if v := os.Getenv("GITHUB_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("GITHUB_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
