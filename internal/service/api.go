package service

import (
	"github.com/mmynk/splitbill/internal/calculator"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/prefill"
)

// Messages exchanged over Connect. They are encoded as JSON.

type RegisterRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  models.Participant `json:"user"`
	Token string             `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  models.Participant `json:"user"`
	Token string             `json:"token"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User models.Participant `json:"user"`
}

type GetLedgerRequest struct{}

type GetLedgerResponse struct {
	CurrentUser models.Participant   `json:"currentUser"`
	Expenses    []models.Expense     `json:"expenses"`
	Friends     []models.Participant `json:"friends"`
}

type AddExpenseRequest struct {
	Description    string                 `json:"description"`
	TotalAmount    float64                `json:"totalAmount"`
	SplitType      string                 `json:"splitType"`
	ParticipantIDs []string               `json:"participantIDs"`
	PayerID        string                 `json:"payerID,omitempty"`
	PaymentDetails []models.PaymentDetail `json:"paymentDetails,omitempty"`
	SplitInputs    []string               `json:"splitInputs,omitempty"`

	// Receipt is an optional image, base64 encoded on the wire.
	Receipt []byte `json:"receipt,omitempty"`
}

type AddExpenseResponse struct {
	Expense models.Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseID"`
}

type DeleteExpenseResponse struct{}

type ComputeSplitRequest struct {
	TotalAmount    float64  `json:"totalAmount"`
	ParticipantIDs []string `json:"participantIDs"`
	SplitType      string   `json:"splitType"`
	SplitInputs    []string `json:"splitInputs,omitempty"`
}

type ComputeSplitResponse struct {
	PaymentDetails []models.PaymentDetail `json:"paymentDetails"`
}

type ListFriendsRequest struct{}

type ListFriendsResponse struct {
	Friends []models.Participant `json:"friends"`
}

type AddFriendRequest struct {
	// UserID adds a known user. Otherwise Query is matched against emails, then phone numbers.
	UserID string `json:"userID,omitempty"`
	Query  string `json:"query,omitempty"`
}

type AddFriendResponse struct {
	Friend models.Participant `json:"friend"`
	Found  bool               `json:"found"`
}

type DeleteFriendRequest struct {
	FriendshipID string `json:"friendshipID"`
}

type DeleteFriendResponse struct{}

type GetBalancesRequest struct {
	// FriendID additionally asks for the net balance with one friend.
	FriendID string `json:"friendID,omitempty"`
}

type GetBalancesResponse struct {
	Balances []calculator.MemberBalance `json:"balances"`
	Debts    []calculator.DebtEdge      `json:"debts"`

	// NetWithFriend is what FriendID owes the caller; negative when the caller owes.
	NetWithFriend float64 `json:"netWithFriend"`
}

type PrefillRequest struct {
	// Text is the recognized receipt text, one line per receipt line.
	Text string `json:"text"`
}

type PrefillResponse struct {
	Suggestion prefill.Suggestion `json:"suggestion"`
}
