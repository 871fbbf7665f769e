package papersources

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// NCBI publishes two request budgets for E-utilities.
const (
	AnonymousRate = 3.0
	KeyedRate     = 10.0
)

// RateLimiter paces outbound E-utilities traffic. Requests that carry an
// api_key draw from a separate, faster bucket because NCBI accounts for them
// per key rather than per client address. It is safe for concurrent use.
type RateLimiter struct {
	anonymous *rate.Limiter
	keyed     *rate.Limiter
}

// NewRateLimiter creates a limiter with the given anonymous and keyed rates
// in requests per second. A non-positive keyed rate uses KeyedRate, or the
// anonymous rate when that is higher.
func NewRateLimiter(anonymousRate, keyedRate float64, burst int) *RateLimiter {
	if keyedRate <= 0 {
		keyedRate = max(KeyedRate, anonymousRate)
	}
	return &RateLimiter{
		anonymous: rate.NewLimiter(rate.Limit(anonymousRate), burst),
		keyed:     rate.NewLimiter(rate.Limit(keyedRate), burst),
	}
}

// Wait blocks until a request is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context, keyed bool) error {
	return r.bucket(keyed).Wait(ctx)
}

// WaitRequest waits on the bucket matching the request's api_key parameter.
func (r *RateLimiter) WaitRequest(req *http.Request) error {
	return r.Wait(req.Context(), hasAPIKey(req))
}

func (r *RateLimiter) bucket(keyed bool) *rate.Limiter {
	if keyed {
		return r.keyed
	}
	return r.anonymous
}

func hasAPIKey(req *http.Request) bool {
	return req.URL != nil && req.URL.Query().Get("api_key") != ""
}
