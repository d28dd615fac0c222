package core

import (
	"context"
	"time"
)

// EventKind tells whether an eligibility event consumed or restored quota.
type EventKind string

const (
	EventDecrement EventKind = "DECREMENT"
	EventIncrement EventKind = "INCREMENT"
)

// EligibilityEvent is the immutable record of one applied quota change. Delta is the
// change actually applied (after clamping at zero); Quantity is what was requested.
type EligibilityEvent struct {
	EmployeeID    string    `json:"employee_id"`
	Kind          EventKind `json:"kind"`
	Category      string    `json:"category"`
	PreviousValue int       `json:"previous_value"`
	NewValue      int       `json:"new_value"`
	Delta         int       `json:"delta"`
	Quantity      int       `json:"quantity"`
	SourceRef     string    `json:"source_ref"`
	LineNo        int       `json:"line_no"`
	CreatedAt     time.Time `json:"created_at"`
}

// EligibilityMutation is a staged change awaiting Apply. (Kind, SourceRef, LineNo)
// identifies it; applying the same identity twice is a no-op.
type EligibilityMutation struct {
	Kind      EventKind
	Category  string
	Quantity  int
	SourceRef string
	LineNo    int
}

// NextRemaining computes the balance after a mutation. Decrements clamp at zero;
// increments have no upper bound.
func NextRemaining(kind EventKind, current, quantity int) int {
	if kind == EventIncrement {
		return current + quantity
	}
	next := current - quantity
	if next < 0 {
		return 0
	}
	return next
}

// LedgerItem is one order line handed to the ledger.
type LedgerItem struct {
	ProductRef ProductRef `json:"product_ref"`
	Quantity   int        `json:"quantity" validate:"gt=0"`
}

// ItemError reports a line item that was skipped.
type ItemError struct {
	Index      int        `json:"index"`
	ProductRef ProductRef `json:"product_ref"`
	Error      string     `json:"error"`
}

// DecrementResult is returned by DecrementOnOrderPlacement.
type DecrementResult struct {
	Success    bool               `json:"success"`
	Decrements []EligibilityEvent `json:"decrements"`
	Errors     []ItemError        `json:"errors"`
}

// IncrementResult is returned by IncrementOnReturnApproval.
type IncrementResult struct {
	Success   bool              `json:"success"`
	Increment *EligibilityEvent `json:"increment,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// EligibilityStore persists balances and the append-only event log.
type EligibilityStore interface {
	// FindEmployee looks up by primary id, falling back to employee_code.
	FindEmployee(ctx context.Context, ref string) (*Employee, error)

	// Apply applies all mutations atomically, in order, and returns the events that
	// were newly recorded. Mutations whose identity was already applied are skipped.
	Apply(ctx context.Context, employeeID string, mutations []EligibilityMutation) ([]EligibilityEvent, error)

	// Balances returns the remaining quota per category.
	Balances(ctx context.Context, employeeID string) (map[string]int, error)

	// Events returns the event log for an employee in application order.
	Events(ctx context.Context, employeeID string) ([]EligibilityEvent, error)
}

// EligibilityLedger owns per-employee, per-category quota balances.
type EligibilityLedger interface {
	// DecrementOnOrderPlacement consumes quota for every resolvable line of an order.
	// Replacement orders never consume quota. An unknown employee fails the whole
	// call; unresolvable lines are reported in Errors and skipped.
	DecrementOnOrderPlacement(ctx context.Context, employeeID string, items []LedgerItem, orderID string, isReplacementOrder bool) (*DecrementResult, error)

	// IncrementOnReturnApproval restores quota for an approved return. Unknown
	// employees or categories yield Success=false rather than an error.
	IncrementOnReturnApproval(ctx context.Context, employeeID string, ref ProductRef, quantity int, returnRequestID string) (*IncrementResult, error)

	// Balances returns the employee's current remaining quota per category.
	Balances(ctx context.Context, employeeID string) (map[string]int, error)

	// History returns every applied eligibility event for the employee.
	History(ctx context.Context, employeeID string) ([]EligibilityEvent, error)
}
