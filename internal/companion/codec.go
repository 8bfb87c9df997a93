package companion

import (
	"encoding/json"
	"fmt"

	"github.com/mmynk/splitbill/internal/models"
)

// Wire keys of the snapshot payload.
const (
	KeyCurrentUser = "currentUser"
	KeyExpenses    = "expenses"
	KeyFriends     = "friends"
)

// EncodeSnapshot serializes each field on its own. A field that fails to encode is left out and
// reported in skipped; the others are still sent.
func EncodeSnapshot(snap models.Snapshot) (payload []byte, skipped []string, err error) {
	fields := make(map[string]json.RawMessage, 3)

	encode := func(key string, v any) {
		raw, err := json.Marshal(v)
		if err != nil {
			skipped = append(skipped, key)
			return
		}
		fields[key] = raw
	}
	encode(KeyExpenses, snap.Expenses)
	encode(KeyFriends, snap.Friends)
	encode(KeyCurrentUser, snap.CurrentUser)

	payload, err = json.Marshal(fields)
	if err != nil {
		return nil, skipped, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return payload, skipped, nil
}

// DecodeSnapshot decodes every field present in payload on its own and applies it to base.
// Fields that are absent or fail to decode keep their value from base; their keys are returned in skipped.
func DecodeSnapshot(payload []byte, base models.Snapshot) (snap models.Snapshot, skipped []string, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return base, nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snap = base.Clone()

	if raw, ok := fields[KeyExpenses]; ok {
		var expenses []models.Expense
		if err := json.Unmarshal(raw, &expenses); err != nil {
			skipped = append(skipped, KeyExpenses)
		} else {
			snap.Expenses = expenses
		}
	} else {
		skipped = append(skipped, KeyExpenses)
	}

	if raw, ok := fields[KeyFriends]; ok {
		var friends []models.Participant
		if err := json.Unmarshal(raw, &friends); err != nil {
			skipped = append(skipped, KeyFriends)
		} else {
			snap.Friends = friends
		}
	} else {
		skipped = append(skipped, KeyFriends)
	}

	if raw, ok := fields[KeyCurrentUser]; ok {
		var user *models.Participant
		if err := json.Unmarshal(raw, &user); err != nil {
			skipped = append(skipped, KeyCurrentUser)
		} else {
			snap.CurrentUser = user
		}
	} else {
		skipped = append(skipped, KeyCurrentUser)
	}

	return snap, skipped, nil
}
