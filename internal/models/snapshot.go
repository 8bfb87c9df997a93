package models

// Snapshot is the in-memory ledger of the primary process: the current user, their expenses and friends.
// It is exactly what gets replicated to the companion.
type Snapshot struct {
	CurrentUser *Participant
	Expenses    []Expense
	Friends     []Participant
}

// Clone returns a deep copy so readers never share slices with the owner.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		out.CurrentUser = &u
	}
	if s.Expenses != nil {
		out.Expenses = make([]Expense, len(s.Expenses))
		for i, e := range s.Expenses {
			e.Participants = append([]Participant(nil), e.Participants...)
			if e.PaymentDetails != nil {
				e.PaymentDetails = append([]PaymentDetail(nil), e.PaymentDetails...)
			}
			out.Expenses[i] = e
		}
	}
	if s.Friends != nil {
		out.Friends = append([]Participant(nil), s.Friends...)
	}
	return out
}
