package ledger

import (
	"fmt"
	"strings"

	"github.com/mmynk/splitbill/internal/calculator"
)

// NotFoundError reports a referenced document that does not exist.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

// InvalidSplitError reports split inputs that fail validation. Nothing is written when it is returned.
type InvalidSplitError = calculator.InvalidSplitError

// TransportError reports a failed store or companion call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PartialWriteError reports an expense whose header was written but some participation facts were not.
// Nothing is rolled back: the expense may be partially persisted and callers decide whether to retry.
type PartialWriteError struct {
	ExpenseID string

	// Written and Failed hold participant IDs, in payment detail order.
	Written []string
	Failed  []string

	// Err is the first fact write error.
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("expense %s partially written: %d of %d participation facts failed (%s): %v",
		e.ExpenseID, len(e.Failed), len(e.Written)+len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
