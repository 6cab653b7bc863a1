package tasks

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCatalogInterval is the minimum spacing between requests to the public MusicBrainz service.
const DefaultCatalogInterval = 1100 * time.Millisecond

// RateLimiter spaces out requests to a rate-limited service.
//
// One limiter is shared by every caller of the same backing service.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewCatalogLimiter returns a token bucket with burst 1 that admits one request per interval.
func NewCatalogLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = DefaultCatalogInterval
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// NoopLimiter never waits.
type NoopLimiter struct{}

func (NoopLimiter) Wait(ctx context.Context) error {
	return nil
}
