package middleware

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded is matched by every *BudgetExceededError.
var ErrBudgetExceeded = errors.New("parse budget exceeded")

// BudgetExceededError reports a parse call refused because the budget's
// call limit was reached.
type BudgetExceededError struct {
	// Limit is the configured maximum number of parse calls.
	Limit int64
	// Used is the number of calls attempted, including the refused one.
	Used int64
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("parse budget exceeded: %d of %d calls", e.Used, e.Limit)
}

// Is reports whether target is ErrBudgetExceeded.
func (e *BudgetExceededError) Is(target error) bool { return target == ErrBudgetExceeded }
