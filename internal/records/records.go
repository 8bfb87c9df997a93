// Package records translates between raw store documents and typed ledger records.
//
// Decoding is strict about references (a fact without its user or expense reference is rejected)
// and lenient about display fields, which fall back to fixed defaults:
//
//	User.Name            -> "Unknown"
//	User.PhoneNumber     -> "No Phone Number"
//	User.Email           -> "No Email"
//	Expense.Description  -> "No Description"
//	Expense.TotalAmount  -> 0
//	Expense.SplitType    -> Equally (also for unknown values)
//	Expense.Date         -> zero time
//	Participation.PaidAmount -> 0
package records

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/models"
)

// Default display values substituted for missing user and expense fields.
const (
	DefaultName        = "Unknown"
	DefaultPhoneNumber = "No Phone Number"
	DefaultEmail       = "No Email"
	DefaultDescription = "No Description"
)

// Field names of stored documents.
const (
	FieldName         = "Name"
	FieldEmail        = "Email"
	FieldPhoneNumber  = "PhoneNumber"
	FieldPasswordHash = "PasswordHash"

	FieldUserID1        = "UserID1"
	FieldUserID2        = "UserID2"
	FieldFriendshipDate = "FriendshipDate"

	FieldDescription = "Description"
	FieldTotalAmount = "TotalAmount"
	FieldSplitType   = "SplitType"
	FieldDate        = "Date"
	FieldPayerID     = "PayerID"
	FieldImageURL    = "ImageURL"

	FieldExpenseID  = "ExpenseID"
	FieldUserID     = "UserID"
	FieldPaidAmount = "PaidAmount"
)

// DecodeError reports a document that cannot be turned into a typed record.
type DecodeError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: field %s: %s", e.Collection, e.ID, e.Field, e.Reason)
}

// ExpenseHeader is the stored part of an expense, without participants.
type ExpenseHeader struct {
	ID          string
	Description string
	TotalAmount float64
	SplitType   models.SplitType
	Date        time.Time
	PayerID     string
	ImageURL    string
}

// Participation is one participation fact: a user's share of one expense.
type Participation struct {
	ID         string
	ExpenseID  string
	UserID     string
	PaidAmount float64
}

// DecodeUser builds a Participant from a User document.
// FriendshipID is left empty; callers that resolved the user through an edge set it.
func DecodeUser(doc *docstore.Document) (models.Participant, error) {
	if doc == nil {
		return models.Participant{}, &DecodeError{Collection: docstore.Users, Reason: "missing document"}
	}
	return models.Participant{
		ID:          doc.ID,
		Name:        stringOr(doc.Fields, FieldName, DefaultName),
		PhoneNumber: stringOr(doc.Fields, FieldPhoneNumber, DefaultPhoneNumber),
		Email:       stringOr(doc.Fields, FieldEmail, DefaultEmail),
	}, nil
}

// DecodeFriendship builds a Friendship from a Friends document. Both endpoints are required.
func DecodeFriendship(doc docstore.Document) (models.Friendship, error) {
	u1, err := requireRef(doc, FieldUserID1)
	if err != nil {
		return models.Friendship{}, err
	}
	u2, err := requireRef(doc, FieldUserID2)
	if err != nil {
		return models.Friendship{}, err
	}
	f := models.Friendship{ID: doc.ID, UserID1: u1, UserID2: u2}
	if t, ok := timeValue(doc.Fields[FieldFriendshipDate]); ok {
		f.CreatedAt = t.Unix()
	}
	return f, nil
}

// DecodeExpenseHeader builds an ExpenseHeader from an Expense document. The payer reference is required.
func DecodeExpenseHeader(doc *docstore.Document) (ExpenseHeader, error) {
	if doc == nil {
		return ExpenseHeader{}, &DecodeError{Collection: docstore.Expenses, Reason: "missing document"}
	}
	payer, err := requireRef(*doc, FieldPayerID)
	if err != nil {
		return ExpenseHeader{}, err
	}

	h := ExpenseHeader{
		ID:          doc.ID,
		Description: stringOr(doc.Fields, FieldDescription, DefaultDescription),
		SplitType:   models.ParseSplitType(stringOr(doc.Fields, FieldSplitType, "")),
		PayerID:     payer,
		ImageURL:    stringOr(doc.Fields, FieldImageURL, ""),
	}
	if v, ok := floatValue(doc.Fields[FieldTotalAmount]); ok {
		h.TotalAmount = v
	}
	if t, ok := timeValue(doc.Fields[FieldDate]); ok {
		h.Date = t
	}
	return h, nil
}

// DecodeParticipation builds a Participation from an ExpenseParticipations document.
// Both the expense and the user reference are required.
func DecodeParticipation(doc docstore.Document) (Participation, error) {
	expenseID, err := requireRef(doc, FieldExpenseID)
	if err != nil {
		return Participation{}, err
	}
	userID, err := requireRef(doc, FieldUserID)
	if err != nil {
		return Participation{}, err
	}
	p := Participation{ID: doc.ID, ExpenseID: expenseID, UserID: userID}
	if v, ok := floatValue(doc.Fields[FieldPaidAmount]); ok {
		p.PaidAmount = v
	}
	return p, nil
}

// UserFields encodes a User document.
func UserFields(name, email, phone, passwordHash string) docstore.Fields {
	fields := docstore.Fields{
		FieldName:        name,
		FieldEmail:       email,
		FieldPhoneNumber: phone,
	}
	if passwordHash != "" {
		fields[FieldPasswordHash] = passwordHash
	}
	return fields
}

// FriendshipFields encodes a Friends edge from userID to friendID.
func FriendshipFields(userID, friendID string, at time.Time) docstore.Fields {
	return docstore.Fields{
		FieldUserID1:        docstore.RefTo(docstore.Users, userID),
		FieldUserID2:        docstore.RefTo(docstore.Users, friendID),
		FieldFriendshipDate: at,
	}
}

// ExpenseHeaderFields encodes an Expense header document.
func ExpenseHeaderFields(h ExpenseHeader) docstore.Fields {
	fields := docstore.Fields{
		FieldDescription: h.Description,
		FieldTotalAmount: h.TotalAmount,
		FieldSplitType:   string(h.SplitType),
		FieldDate:        h.Date,
		FieldPayerID:     docstore.RefTo(docstore.Users, h.PayerID),
	}
	if h.ImageURL != "" {
		fields[FieldImageURL] = h.ImageURL
	}
	return fields
}

// ParticipationFields encodes one participation fact.
func ParticipationFields(expenseID, userID string, amount float64) docstore.Fields {
	return docstore.Fields{
		FieldExpenseID:  docstore.RefTo(docstore.Expenses, expenseID),
		FieldUserID:     docstore.RefTo(docstore.Users, userID),
		FieldPaidAmount: amount,
	}
}

func stringOr(fields docstore.Fields, key, fallback string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return fallback
}

func requireRef(doc docstore.Document, field string) (string, error) {
	var ref docstore.Ref
	switch v := doc.Fields[field].(type) {
	case string:
		ref = docstore.Ref(v)
	case docstore.Ref:
		ref = v
	default:
		return "", &DecodeError{Collection: doc.Collection, ID: doc.ID, Field: field, Reason: "missing reference"}
	}
	id := ref.ID()
	if id == "" {
		return "", &DecodeError{Collection: doc.Collection, ID: doc.ID, Field: field, Reason: fmt.Sprintf("malformed reference %q", ref)}
	}
	return id, nil
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		// Legacy documents store seconds since the Unix epoch.
		if secs, ok := floatValue(v); ok {
			return time.Unix(int64(secs), 0).UTC(), true
		}
		return time.Time{}, false
	}
}
