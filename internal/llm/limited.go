package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"golang.org/x/time/rate"
)

// Limited paces every call through one shared token bucket and bounds each
// call with a timeout. A single Limited is shared by all agent loops.
type Limited struct {
	next    domain.Reasoner
	limiter *rate.Limiter
	timeout time.Duration
}

func NewLimited(next domain.Reasoner, rps float64, burst int, timeout time.Duration) *Limited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (l *Limited) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("reasoning rate limit: %w", err)
	}
	if l.timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	return ctx, cancel, nil
}

func (l *Limited) SynthesizePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	ctx, cancel, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return l.next.SynthesizePlan(ctx, req)
}

func (l *Limited) ExtractPropositions(ctx context.Context, req domain.ExtractionRequest) ([]domain.Proposition, error) {
	ctx, cancel, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return l.next.ExtractPropositions(ctx, req)
}
