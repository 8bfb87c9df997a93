package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
	"github.com/mmynk/splitbill/internal/session"
)

// ErrSelfFriend is returned when a user tries to befriend themselves.
var ErrSelfFriend = errors.New("cannot add yourself as a friend")

// LoadFriends returns the counterpart of every friendship edge the session user is on.
//
// Each friend is tagged with the ID of the edge it was resolved through. Edges where the user is the
// first endpoint come first. Two edges between the same pair yield the friend twice.
func (e *Engine) LoadFriends(ctx context.Context, sc session.Context) []models.Participant {
	first := make(chan []models.Participant, 1)
	second := make(chan []models.Participant, 1)
	go func() { first <- e.friendsVia(ctx, sc, records.FieldUserID1) }()
	go func() { second <- e.friendsVia(ctx, sc, records.FieldUserID2) }()

	friends := append([]models.Participant{}, <-first...)
	return append(friends, <-second...)
}

// friendsVia resolves the edges where the session user sits in endpoint field.
func (e *Engine) friendsVia(ctx context.Context, sc session.Context, field string) []models.Participant {
	edges, err := e.query(ctx, docstore.Friends, field, sc.UserRef())
	if err != nil {
		e.log.Error("Failed to query friendships", "user_id", sc.UserID, "endpoint", field, "error", err)
		return nil
	}

	results := make(chan joined[models.Participant], len(edges))
	for i, doc := range edges {
		go func() {
			edge, err := records.DecodeFriendship(doc)
			if err != nil {
				e.log.Warn("Skipping friendship edge", "edge_id", doc.ID, "error", err)
				results <- joined[models.Participant]{index: i}
				return
			}
			friend, ok := e.resolveUser(ctx, edge.Other(sc.UserID))
			friend.FriendshipID = edge.ID
			results <- joined[models.Participant]{index: i, value: friend, ok: ok}
		}()
	}

	slots := make([]joined[models.Participant], len(edges))
	for range edges {
		r := <-results
		slots[r.index] = r
	}

	friends := make([]models.Participant, 0, len(edges))
	for _, r := range slots {
		if r.ok {
			friends = append(friends, r.value)
		}
	}
	return friends
}

// AddFriend writes a friendship edge from the session user to friendID and returns the friend
// tagged with the new edge ID.
func (e *Engine) AddFriend(ctx context.Context, sc session.Context, friendID string) (models.Participant, error) {
	if friendID == sc.UserID {
		return models.Participant{}, ErrSelfFriend
	}

	friend, err := e.profile(ctx, friendID)
	if err != nil {
		return models.Participant{}, err
	}

	edgeID, err := e.add(ctx, docstore.Friends, records.FriendshipFields(sc.UserID, friendID, e.now().UTC()))
	e.metrics.Write("add_friend", err)
	if err != nil {
		return models.Participant{}, &TransportError{Op: "add friendship", Err: err}
	}

	friend.FriendshipID = edgeID
	e.log.Info("Friend added", "user_id", sc.UserID, "friend_id", friendID, "edge_id", edgeID)
	return friend, nil
}

// SearchAndAddFriend looks a user up by email, then by phone number, and befriends the first match.
// It reports false when nobody matches.
func (e *Engine) SearchAndAddFriend(ctx context.Context, sc session.Context, emailOrPhone string) (models.Participant, bool, error) {
	needle := strings.TrimSpace(emailOrPhone)
	if needle == "" {
		return models.Participant{}, false, nil
	}

	for _, field := range []string{records.FieldEmail, records.FieldPhoneNumber} {
		matches, err := e.query(ctx, docstore.Users, field, needle)
		if err != nil {
			return models.Participant{}, false, &TransportError{Op: "search users", Err: err}
		}
		if len(matches) == 0 {
			continue
		}
		friend, err := e.AddFriend(ctx, sc, matches[0].ID)
		if err != nil {
			return models.Participant{}, true, err
		}
		return friend, true, nil
	}
	return models.Participant{}, false, nil
}

// DeleteFriend removes one friendship edge.
func (e *Engine) DeleteFriend(ctx context.Context, edgeID string) error {
	err := e.delete(ctx, docstore.Friends, edgeID)
	e.metrics.Write("delete_friend", err)
	if err != nil {
		return &TransportError{Op: "delete friendship", Err: err}
	}
	e.log.Info("Friend deleted", "edge_id", edgeID)
	return nil
}
