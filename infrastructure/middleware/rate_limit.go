package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

// RateLimitedParser paces parse calls with a token bucket so concurrent
// test phases stay within an inference service's quota.
type RateLimitedParser struct {
	next    ports.Parser
	limiter *rate.Limiter
}

var _ ports.Parser = (*RateLimitedParser)(nil)

// NewRateLimitedParser wraps next with a limiter of limit calls per second
// and the given burst.
func NewRateLimitedParser(next ports.Parser, limit rate.Limit, burst int) *RateLimitedParser {
	if next == nil {
		panic("rate limited parser: next parser is required")
	}
	return &RateLimitedParser{next: next, limiter: rate.NewLimiter(limit, max(burst, 1))}
}

// Parse implements ports.Parser. It blocks until the limiter admits the
// call or ctx is done.
func (rp *RateLimitedParser) Parse(
	ctx context.Context,
	pc ports.ParseContext,
	text string,
	intentModel ports.IntentModel,
	entityModels map[string]ports.EntityModel,
) (domain.ParseResult, error) {
	if err := rp.limiter.Wait(ctx); err != nil {
		// The limiter reports an unmet deadline before it expires; prefer
		// the context's own error when there is one.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ParseResult{}, ctxErr
		}
		return domain.ParseResult{}, fmt.Errorf("rate limit: %w", err)
	}
	return rp.next.Parse(ctx, pc, text, intentModel, entityModels)
}
