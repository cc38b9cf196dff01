package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Endpoint names shared by the upstream client.
const (
	EndpointToken     = "token"
	EndpointOffers    = "offers"
	EndpointLocations = "locations"
)

// Limit is the token bucket shape of one endpoint.
type Limit struct {
	RequestsPerSecond float64
	Burst             int
}

// EndpointLimiter keeps one token bucket per upstream endpoint so that a burst
// of airport lookups cannot starve the offer search. Endpoints without an
// explicit limit share the fallback shape, each in its own bucket.
type EndpointLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	limits   map[string]Limit
	fallback Limit
}

func NewEndpointLimiter(fallback Limit, perEndpoint map[string]Limit) *EndpointLimiter {
	limits := make(map[string]Limit, len(perEndpoint))
	for endpoint, limit := range perEndpoint {
		limits[endpoint] = limit
	}
	return &EndpointLimiter{
		buckets:  make(map[string]*rate.Limiter),
		limits:   limits,
		fallback: fallback,
	}
}

// Unlimited never blocks; used in tests and when limiting is disabled.
func Unlimited() *EndpointLimiter {
	return NewEndpointLimiter(Limit{RequestsPerSecond: float64(rate.Inf)}, nil)
}

// Bucket returns the limiter of endpoint, creating it on first use.
func (l *EndpointLimiter) Bucket(endpoint string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[endpoint]; ok {
		return b
	}
	limit, ok := l.limits[endpoint]
	if !ok {
		limit = l.fallback
	}
	b := rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.Burst)
	l.buckets[endpoint] = b
	return b
}

// Wait blocks until endpoint may issue one request or ctx is done. A nil
// limiter never blocks.
func (l *EndpointLimiter) Wait(ctx context.Context, endpoint string) error {
	if l == nil {
		return nil
	}
	return l.Bucket(endpoint).Wait(ctx)
}
