package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbill/internal/calculator"
	"github.com/mmynk/splitbill/internal/ledger"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/prefill"
	"github.com/mmynk/splitbill/internal/state"
)

var (
	errMissingExpenseID    = errors.New("expense_id is required")
	errMissingFriendshipID = errors.New("friendship_id is required")
	errMissingFriend       = errors.New("user_id or query is required")
	errNoParticipants      = errors.New("at least one participant is required")
)

// LedgerService serves expenses, friends and balances of the authenticated user.
type LedgerService struct {
	engine    *ledger.Engine
	workspace *Workspace
	extractor prefill.Extractor
	logger    *slog.Logger
}

// NewLedgerService creates a LedgerService. workspace may be nil.
func NewLedgerService(engine *ledger.Engine, workspace *Workspace, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		engine:    engine,
		workspace: workspace,
		extractor: prefill.TextExtractor{},
		logger:    logger,
	}
}

// GetLedger reads the caller's full ledger from the store.
func (s *LedgerService) GetLedger(ctx context.Context, req *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("GetLedger request received", "user_id", sc.UserID)

	user, err := s.engine.ResolveCurrentUser(ctx, sc)
	if err != nil {
		return nil, toConnectError(err)
	}
	expenses := s.engine.ReconstructExpenses(ctx, sc)
	friends := s.engine.LoadFriends(ctx, sc)

	s.workspace.reflect(sc, func(l *state.Ledger) error {
		if err := l.SetCurrentUser(&user); err != nil {
			return err
		}
		if err := l.SetExpenses(expenses); err != nil {
			return err
		}
		return l.SetFriends(friends)
	})

	return connect.NewResponse(&GetLedgerResponse{
		CurrentUser: user,
		Expenses:    expenses,
		Friends:     friends,
	}), nil
}

// AddExpense records a new expense paid by PayerID, or by the caller when PayerID is empty.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	s.logger.Info("AddExpense request received",
		"user_id", sc.UserID,
		"description", msg.Description,
		"total", msg.TotalAmount,
		"split_type", msg.SplitType,
		"participants", len(msg.ParticipantIDs),
	)

	if len(msg.ParticipantIDs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errNoParticipants)
	}
	participants, err := s.engine.Profiles(ctx, msg.ParticipantIDs)
	if err != nil {
		return nil, toConnectError(err)
	}

	var payer models.Participant
	if msg.PayerID != "" {
		if i := models.IndexOf(participants, msg.PayerID); i >= 0 {
			payer = participants[i]
		} else {
			found, err := s.engine.Profiles(ctx, []string{msg.PayerID})
			if err != nil {
				return nil, toConnectError(err)
			}
			payer = found[0]
		}
	}

	exp, err := s.engine.AddExpense(ctx, sc, ledger.NewExpense{
		Description:    msg.Description,
		TotalAmount:    msg.TotalAmount,
		SplitType:      models.ParseSplitType(msg.SplitType),
		Participants:   participants,
		Payer:          payer,
		PaymentDetails: msg.PaymentDetails,
		SplitInputs:    msg.SplitInputs,
		Receipt:        msg.Receipt,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	// Only participation facts put an expense into a user's ledger.
	if models.IndexOf(exp.Participants, sc.UserID) >= 0 {
		s.workspace.reflect(sc, func(l *state.Ledger) error { return l.AddExpense(exp) })
	}
	return connect.NewResponse(&AddExpenseResponse{Expense: exp}), nil
}

// DeleteExpense removes an expense and all of its participation facts.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("DeleteExpense request received", "user_id", sc.UserID, "expense_id", req.Msg.ExpenseID)

	if req.Msg.ExpenseID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingExpenseID)
	}
	if err := s.engine.DeleteExpense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError(err)
	}

	s.workspace.reflect(sc, func(l *state.Ledger) error { return l.RemoveExpense(req.Msg.ExpenseID) })
	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// ComputeSplit previews the allocations of an expense without writing anything.
func (s *LedgerService) ComputeSplit(ctx context.Context, req *connect.Request[ComputeSplitRequest]) (*connect.Response[ComputeSplitResponse], error) {
	msg := req.Msg
	s.logger.Debug("ComputeSplit request received",
		"total", msg.TotalAmount,
		"split_type", msg.SplitType,
		"participants", len(msg.ParticipantIDs),
	)

	participants := make([]models.Participant, len(msg.ParticipantIDs))
	for i, id := range msg.ParticipantIDs {
		participants[i] = models.Participant{ID: id}
	}

	details, err := calculator.ComputeAllocations(msg.TotalAmount, participants, models.ParseSplitType(msg.SplitType), msg.SplitInputs)
	if err != nil {
		s.logger.Warn("ComputeSplit failed", "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ComputeSplitResponse{PaymentDetails: details}), nil
}

// ListFriends returns the caller's friends from both ends of every friendship edge.
func (s *LedgerService) ListFriends(ctx context.Context, req *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ListFriends request received", "user_id", sc.UserID)

	friends := s.engine.LoadFriends(ctx, sc)
	s.workspace.reflect(sc, func(l *state.Ledger) error { return l.SetFriends(friends) })
	return connect.NewResponse(&ListFriendsResponse{Friends: friends}), nil
}

// AddFriend befriends a user by ID, or the first user whose email or phone number matches Query.
func (s *LedgerService) AddFriend(ctx context.Context, req *connect.Request[AddFriendRequest]) (*connect.Response[AddFriendResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("AddFriend request received", "user_id", sc.UserID, "friend_id", req.Msg.UserID)

	var (
		friend models.Participant
		found  = true
	)
	switch {
	case req.Msg.UserID != "":
		friend, err = s.engine.AddFriend(ctx, sc, req.Msg.UserID)
	case strings.TrimSpace(req.Msg.Query) != "":
		friend, found, err = s.engine.SearchAndAddFriend(ctx, sc, req.Msg.Query)
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingFriend)
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	if !found {
		return connect.NewResponse(&AddFriendResponse{}), nil
	}

	s.workspace.reflect(sc, func(l *state.Ledger) error { return l.AddFriend(friend) })
	return connect.NewResponse(&AddFriendResponse{Friend: friend, Found: true}), nil
}

// DeleteFriend removes one friendship edge.
func (s *LedgerService) DeleteFriend(ctx context.Context, req *connect.Request[DeleteFriendRequest]) (*connect.Response[DeleteFriendResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("DeleteFriend request received", "user_id", sc.UserID, "friendship_id", req.Msg.FriendshipID)

	if req.Msg.FriendshipID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingFriendshipID)
	}
	if err := s.engine.DeleteFriend(ctx, req.Msg.FriendshipID); err != nil {
		return nil, toConnectError(err)
	}

	s.workspace.reflect(sc, func(l *state.Ledger) error { return l.RemoveFriend(req.Msg.FriendshipID) })
	return connect.NewResponse(&DeleteFriendResponse{}), nil
}

// GetBalances computes who owes whom across the caller's expenses.
func (s *LedgerService) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("GetBalances request received", "user_id", sc.UserID, "friend_id", req.Msg.FriendID)

	expenses := s.engine.ReconstructExpenses(ctx, sc)
	balances, debts := calculator.CalculateBalances(expenses)

	resp := &GetBalancesResponse{Balances: balances, Debts: debts}
	if req.Msg.FriendID != "" {
		resp.NetWithFriend = calculator.NetBalanceWith(expenses, sc.UserID, req.Msg.FriendID)
	}
	return connect.NewResponse(resp), nil
}

// Prefill suggests a description and total from recognized receipt text.
func (s *LedgerService) Prefill(ctx context.Context, req *connect.Request[PrefillRequest]) (*connect.Response[PrefillResponse], error) {
	suggestion, err := prefill.FromImage(ctx, s.extractor, []byte(req.Msg.Text))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.logger.Debug("Prefill suggestion", "description", suggestion.Description, "total", suggestion.TotalAmount)
	return connect.NewResponse(&PrefillResponse{Suggestion: suggestion}), nil
}
