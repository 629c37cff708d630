// Package middleware provides ports.Parser decorators for the evaluation
// harness: call budgets, rate limiting, and metrics and tracing around
// each parse, plus a Prometheus implementation of ports.MetricsCollector.
package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

// Budget limits the parse calls a paid inference engine may receive.
type Budget struct {
	// MaxCalls limits the total number of parse calls. Zero means unlimited.
	MaxCalls int64
}

// ParseObserver provides observability hooks around each parse call.
// PreParse may return a derived context that is handed to the wrapped
// parser and to PostParse.
type ParseObserver interface {
	// PreParse is called before the budget check with the call number.
	PreParse(ctx context.Context, call int64, budget Budget) context.Context

	// PostParse is called after the call with its outcome and duration.
	PostParse(ctx context.Context, call int64, budget Budget, elapsed time.Duration, err error)
}

// BudgetedParser refuses parse calls once the budget is spent. Every
// refused call returns a *BudgetExceededError, which the evaluator
// reports as an inference failure.
type BudgetedParser struct {
	budget   Budget
	next     ports.Parser
	observer ParseObserver
	calls    atomic.Int64
}

var _ ports.Parser = (*BudgetedParser)(nil)

// NewBudgetedParser wraps next with budget. observer may be nil.
func NewBudgetedParser(budget Budget, next ports.Parser, observer ParseObserver) *BudgetedParser {
	if next == nil {
		panic("budgeted parser: next parser is required")
	}
	return &BudgetedParser{
		budget:   budget,
		next:     next,
		observer: observer,
	}
}

// Parse implements ports.Parser.
func (bp *BudgetedParser) Parse(
	ctx context.Context,
	pc ports.ParseContext,
	text string,
	intentModel ports.IntentModel,
	entityModels map[string]ports.EntityModel,
) (domain.ParseResult, error) {
	call := bp.calls.Add(1)
	if bp.observer != nil {
		ctx = bp.observer.PreParse(ctx, call, bp.budget)
	}

	start := time.Now()
	var (
		result domain.ParseResult
		err    error
	)
	if bp.budget.MaxCalls > 0 && call > bp.budget.MaxCalls {
		err = &BudgetExceededError{Limit: bp.budget.MaxCalls, Used: call}
	} else {
		result, err = bp.next.Parse(ctx, pc, text, intentModel, entityModels)
	}

	if bp.observer != nil {
		bp.observer.PostParse(ctx, call, bp.budget, time.Since(start), err)
	}
	return result, err
}

// Calls returns the number of parse calls received so far.
func (bp *BudgetedParser) Calls() int64 { return bp.calls.Load() }
