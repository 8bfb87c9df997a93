package ledger

import (
	"context"
	"time"

	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
	"github.com/mmynk/splitbill/internal/session"
)

// Reasons a branch of the join is dropped, used as metric labels.
const (
	dropFacts       = "facts"
	dropHeader      = "header"
	dropPayer       = "payer"
	dropParticipant = "participant"
)

// joined is what one concurrent unit hands back to its aggregator.
type joined[T any] struct {
	index int
	value T
	ok    bool
}

// ReconstructExpenses rebuilds every expense the session user participates in.
//
// Store failures never fail the call: an expense whose header or payer cannot be resolved is left out,
// and a participant whose profile cannot be resolved is left out of that expense.
// Expenses are returned in the order their participation facts were first seen.
func (e *Engine) ReconstructExpenses(ctx context.Context, sc session.Context) []models.Expense {
	defer e.metrics.JoinFinished(time.Now())

	facts, err := e.query(ctx, docstore.Participations, records.FieldUserID, sc.UserRef())
	if err != nil {
		e.log.Error("Failed to query participations", "user_id", sc.UserID, "error", err)
		e.metrics.JoinDropped(dropFacts)
		return []models.Expense{}
	}

	ids := distinctExpenseIDs(facts)
	results := make(chan joined[models.Expense], len(ids))
	for i, id := range ids {
		go func() {
			exp, ok := e.joinExpense(ctx, id)
			results <- joined[models.Expense]{index: i, value: exp, ok: ok}
		}()
	}

	slots := make([]joined[models.Expense], len(ids))
	for range ids {
		r := <-results
		slots[r.index] = r
	}

	expenses := make([]models.Expense, 0, len(ids))
	for _, r := range slots {
		if r.ok {
			expenses = append(expenses, r.value)
		}
	}

	e.log.Debug("Expenses reconstructed", "user_id", sc.UserID, "facts", len(facts), "expenses", len(expenses))
	return expenses
}

func distinctExpenseIDs(facts []docstore.Document) []string {
	seen := make(map[string]bool, len(facts))
	ids := make([]string, 0, len(facts))
	for _, doc := range facts {
		fact, err := records.DecodeParticipation(doc)
		if err != nil {
			continue
		}
		if !seen[fact.ExpenseID] {
			seen[fact.ExpenseID] = true
			ids = append(ids, fact.ExpenseID)
		}
	}
	return ids
}

// resolvedFact is a participation fact paired with its user's profile.
type resolvedFact struct {
	user   models.Participant
	detail models.PaymentDetail
}

// joinExpense resolves one header, its payer and its participants. It returns only after every
// inner lookup has finished.
func (e *Engine) joinExpense(ctx context.Context, expenseID string) (models.Expense, bool) {
	doc, err := e.get(ctx, docstore.Expenses, expenseID)
	if err != nil {
		e.log.Warn("Dropping expense: header unavailable", "expense_id", expenseID, "error", err)
		e.metrics.JoinDropped(dropHeader)
		return models.Expense{}, false
	}
	header, err := records.DecodeExpenseHeader(doc)
	if err != nil {
		e.log.Warn("Dropping expense: header invalid", "expense_id", expenseID, "error", err)
		e.metrics.JoinDropped(dropHeader)
		return models.Expense{}, false
	}

	payerCh := make(chan joined[models.Participant], 1)
	go func() {
		payer, ok := e.resolveUser(ctx, header.PayerID)
		payerCh <- joined[models.Participant]{value: payer, ok: ok}
	}()

	participants, details := e.joinParticipants(ctx, expenseID)

	payer := <-payerCh
	if !payer.ok {
		e.log.Warn("Dropping expense: payer unresolved", "expense_id", expenseID, "payer_id", header.PayerID)
		e.metrics.JoinDropped(dropPayer)
		return models.Expense{}, false
	}

	return models.Expense{
		ID:             header.ID,
		Description:    header.Description,
		Date:           header.Date,
		TotalAmount:    header.TotalAmount,
		SplitType:      header.SplitType,
		Participants:   participants,
		Payer:          payer.value,
		PaymentDetails: details,
		ImageURL:       header.ImageURL,
	}, true
}

// joinParticipants pairs every participation fact of an expense with its user's profile,
// keeping the order in which the store returned the facts.
func (e *Engine) joinParticipants(ctx context.Context, expenseID string) ([]models.Participant, []models.PaymentDetail) {
	participants := []models.Participant{}
	details := []models.PaymentDetail{}

	facts, err := e.query(ctx, docstore.Participations, records.FieldExpenseID, docstore.RefTo(docstore.Expenses, expenseID))
	if err != nil {
		e.log.Warn("Failed to query expense participations", "expense_id", expenseID, "error", err)
		e.metrics.JoinDropped(dropFacts)
		return participants, details
	}

	results := make(chan joined[resolvedFact], len(facts))
	for i, doc := range facts {
		go func() {
			fact, err := records.DecodeParticipation(doc)
			if err != nil {
				e.log.Warn("Skipping participation fact", "fact_id", doc.ID, "error", err)
				results <- joined[resolvedFact]{index: i}
				return
			}
			user, ok := e.resolveUser(ctx, fact.UserID)
			results <- joined[resolvedFact]{
				index: i,
				value: resolvedFact{
					user:   user,
					detail: models.PaymentDetail{ParticipantID: fact.UserID, Amount: fact.PaidAmount},
				},
				ok: ok,
			}
		}()
	}

	slots := make([]joined[resolvedFact], len(facts))
	for range facts {
		r := <-results
		slots[r.index] = r
	}

	for _, r := range slots {
		if !r.ok {
			e.metrics.JoinDropped(dropParticipant)
			continue
		}
		participants = append(participants, r.value.user)
		details = append(details, r.value.detail)
	}
	return participants, details
}
