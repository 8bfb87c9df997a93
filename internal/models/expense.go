package models

import (
	"fmt"
	"time"
)

// SplitType determines how an expense total is divided among participants.
type SplitType string

const (
	SplitEqually    SplitType = "Equally"
	SplitPercentage SplitType = "Percentage"
	SplitByAmount   SplitType = "By Amount"
)

// ParseSplitType maps a stored or user-supplied value to a SplitType.
// Unknown values fall back to SplitEqually, matching how legacy documents are read.
func ParseSplitType(s string) SplitType {
	switch SplitType(s) {
	case SplitPercentage:
		return SplitPercentage
	case SplitByAmount, "ByAmount":
		return SplitByAmount
	default:
		return SplitEqually
	}
}

// Valid reports whether t is one of the known split policies.
func (t SplitType) Valid() bool {
	return t == SplitEqually || t == SplitPercentage || t == SplitByAmount
}

// PaymentDetail links one participant to the amount they owe within one expense.
type PaymentDetail struct {
	ParticipantID string  `json:"participantID"`
	Amount        float64 `json:"amount"`
}

// Expense is the aggregate root of the ledger.
// It is written as a header plus one participation fact per participant, and reconstructed on read.
type Expense struct {
	// ID is the identifier of the expense header document.
	ID string `json:"id"`

	// Description is the human-readable label (e.g. "Costco").
	Description string `json:"description"`

	// Date is when the expense was recorded.
	Date time.Time `json:"date"`

	// TotalAmount is the full amount paid by Payer.
	TotalAmount float64 `json:"totalAmount"`

	// SplitType is the policy used to compute PaymentDetails.
	SplitType SplitType `json:"splitType"`

	// Participants are snapshots of everyone sharing the expense, in store order.
	// Duplicates by ID are forbidden.
	Participants []Participant `json:"participants"`

	// Payer is the participant who paid the total.
	Payer Participant `json:"payer"`

	// PaymentDetails has one entry per participant once computed, aligned with Participants.
	PaymentDetails []PaymentDetail `json:"paymentDetails,omitempty"`

	// ImageURL optionally references an uploaded receipt image.
	ImageURL string `json:"imageURL,omitempty"`
}

// Validate checks the structural invariants of an expense.
func (e *Expense) Validate() error {
	seen := make(map[string]bool, len(e.Participants))
	for _, p := range e.Participants {
		if seen[p.ID] {
			return fmt.Errorf("duplicate participant %q in expense %q", p.ID, e.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// AmountFor returns the amount allocated to participantID, or 0 when it has no payment detail.
func (e *Expense) AmountFor(participantID string) float64 {
	for _, d := range e.PaymentDetails {
		if d.ParticipantID == participantID {
			return d.Amount
		}
	}
	return 0
}

// Involves reports whether userID paid for or participates in the expense.
func (e *Expense) Involves(userID string) bool {
	return e.Payer.ID == userID || IndexOf(e.Participants, userID) >= 0
}
