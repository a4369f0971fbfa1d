package poll

import (
	"context"

	"golang.org/x/time/rate"
)

// Gate bounds the aggregate status-fetch rate across every scheduler
// that shares it, so a process tracking hundreds of runs does not
// hammer the platform API. It uses a token bucket.
//
// The zero Gate is not usable; a nil *Gate means no limit.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate allowing perSecond fetches with the given
// burst.
func NewGate(perSecond float64, burst int) *Gate {
	return &Gate{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a fetch token is available or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
