package llm

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/agent"
	"golang.org/x/time/rate"
)

// RateLimitedModel blocks callers until the limiter admits the request.
type RateLimitedModel struct {
	next    agent.Model
	limiter *rate.Limiter
}

// RateLimited wraps a model so it makes at most requestsPerMinute calls per
// minute, allowing bursts of up to burst calls.
func RateLimited(next agent.Model, requestsPerMinute float64, burst int) *RateLimitedModel {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedModel{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst),
	}
}

func (m *RateLimitedModel) Generate(ctx context.Context, req *agent.ModelRequest) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return m.next.Generate(ctx, req)
}
