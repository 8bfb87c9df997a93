package models

// Participant represents a user taking part in a ledger.
// The same person may appear as a friend, a payer, or a co-participant inside an expense.
type Participant struct {
	// ID is the store-assigned identifier of the user. It is the only field used for equality.
	ID string `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// PhoneNumber is the user's phone number as entered at sign up.
	PhoneNumber string `json:"phoneNumber"`

	// Email is the user's email address.
	Email string `json:"email"`

	// FriendshipID is the identifier of the friendship edge this participant was resolved through.
	// Empty when the participant is not a resolved friend (e.g. a payer inside an expense).
	FriendshipID string `json:"friendshipID"`

	// OwedAmount is a transient scratch field for presentation. It is never persisted as ledger truth.
	OwedAmount float64 `json:"owedAmount"`
}

// Same reports whether p and other refer to the same user.
func (p Participant) Same(other Participant) bool {
	return p.ID == other.ID
}

// IndexOf returns the position of the participant with the given ID, or -1.
func IndexOf(participants []Participant, id string) int {
	for i, p := range participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Friendship is an unordered edge between two users.
type Friendship struct {
	// ID is the edge's own identifier, used for deletion.
	ID string

	// UserID1 is the user who created the friendship.
	UserID1 string

	// UserID2 is the user who was added.
	UserID2 string

	// CreatedAt is the Unix timestamp when the edge was written.
	CreatedAt int64
}

// Other returns the endpoint that is not userID.
// When userID is on neither side, UserID2 is returned.
func (f Friendship) Other(userID string) string {
	if f.UserID2 == userID {
		return f.UserID1
	}
	return f.UserID2
}
