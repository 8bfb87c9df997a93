package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/mmynk/splitbill/internal/calculator"
	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
	"github.com/mmynk/splitbill/internal/session"
)

// ErrNoImageStore is returned when a receipt is attached but no image store is configured.
var ErrNoImageStore = errors.New("no image store configured")

// NewExpense is the input to AddExpense.
type NewExpense struct {
	Description  string
	TotalAmount  float64
	SplitType    models.SplitType
	Participants []models.Participant

	// Payer defaults to the session user when its ID is empty.
	Payer models.Participant

	// PaymentDetails must hold one entry per participant, in order, adding up to TotalAmount.
	// When empty they are computed from SplitInputs.
	PaymentDetails []models.PaymentDetail
	SplitInputs    []string

	// Receipt is an optional image uploaded before anything is written.
	Receipt []byte
}

// AddExpense writes the expense header, then one participation fact per payment detail concurrently.
//
// Invalid split inputs fail with *InvalidSplitError before any write. A failed header write returns
// *TransportError. A failed fact write returns *PartialWriteError; the header and the facts already
// written stay in the store.
func (e *Engine) AddExpense(ctx context.Context, sc session.Context, in NewExpense) (models.Expense, error) {
	exp := models.Expense{
		Description:    strings.TrimSpace(in.Description),
		TotalAmount:    in.TotalAmount,
		SplitType:      in.SplitType,
		Participants:   in.Participants,
		Payer:          in.Payer,
		PaymentDetails: in.PaymentDetails,
	}
	if !exp.SplitType.Valid() {
		exp.SplitType = models.SplitEqually
	}
	if err := exp.Validate(); err != nil {
		return models.Expense{}, &InvalidSplitError{SplitType: exp.SplitType, Reason: err.Error()}
	}

	if len(exp.PaymentDetails) == 0 {
		details, err := calculator.ComputeAllocations(exp.TotalAmount, exp.Participants, exp.SplitType, in.SplitInputs)
		if err != nil {
			return models.Expense{}, err
		}
		exp.PaymentDetails = details
	} else if err := calculator.ValidateDetails(exp.TotalAmount, exp.Participants, exp.SplitType, exp.PaymentDetails); err != nil {
		return models.Expense{}, err
	}

	if exp.Payer.ID == "" {
		payer, err := e.ResolveCurrentUser(ctx, sc)
		if err != nil {
			return models.Expense{}, err
		}
		exp.Payer = payer
	}

	if len(in.Receipt) > 0 {
		if e.images == nil {
			return models.Expense{}, &TransportError{Op: "upload receipt", Err: ErrNoImageStore}
		}
		url, err := e.images.Upload(ctx, in.Receipt)
		if err != nil {
			return models.Expense{}, &TransportError{Op: "upload receipt", Err: err}
		}
		exp.ImageURL = url
	}

	exp.Date = e.now().UTC()
	id, err := e.add(ctx, docstore.Expenses, records.ExpenseHeaderFields(records.ExpenseHeader{
		Description: exp.Description,
		TotalAmount: exp.TotalAmount,
		SplitType:   exp.SplitType,
		Date:        exp.Date,
		PayerID:     exp.Payer.ID,
		ImageURL:    exp.ImageURL,
	}))
	if err != nil {
		e.metrics.Write("add_expense", err)
		return models.Expense{}, &TransportError{Op: "add expense header", Err: err}
	}
	exp.ID = id

	err = e.writeFacts(ctx, id, exp.PaymentDetails)
	e.metrics.Write("add_expense", err)
	if err != nil {
		return models.Expense{}, err
	}

	e.log.Info("Expense added",
		"expense_id", id,
		"split_type", exp.SplitType,
		"total", exp.TotalAmount,
		"participants", len(exp.Participants),
	)
	return exp, nil
}

type factWrite struct {
	index int
	err   error
}

func (e *Engine) writeFacts(ctx context.Context, expenseID string, details []models.PaymentDetail) error {
	results := make(chan factWrite, len(details))
	for i, d := range details {
		go func() {
			_, err := e.add(ctx, docstore.Participations, records.ParticipationFields(expenseID, d.ParticipantID, d.Amount))
			results <- factWrite{index: i, err: err}
		}()
	}

	errs := make([]error, len(details))
	for range details {
		r := <-results
		errs[r.index] = r.err
	}

	partial := &PartialWriteError{ExpenseID: expenseID}
	for i, err := range errs {
		if err == nil {
			partial.Written = append(partial.Written, details[i].ParticipantID)
			continue
		}
		partial.Failed = append(partial.Failed, details[i].ParticipantID)
		if partial.Err == nil {
			partial.Err = err
		}
	}
	if len(partial.Failed) > 0 {
		e.log.Error("Expense partially written",
			"expense_id", expenseID,
			"written", len(partial.Written),
			"failed", len(partial.Failed),
			"error", partial.Err,
		)
		return partial
	}
	return nil
}

// DeleteExpense removes every participation fact of the expense in one batch, then the header.
// A failure stops the sequence, so the header is never removed while facts still point at it.
func (e *Engine) DeleteExpense(ctx context.Context, expenseID string) error {
	err := e.deleteExpense(ctx, expenseID)
	e.metrics.Write("delete_expense", err)
	return err
}

func (e *Engine) deleteExpense(ctx context.Context, expenseID string) error {
	facts, err := e.query(ctx, docstore.Participations, records.FieldExpenseID, docstore.RefTo(docstore.Expenses, expenseID))
	if err != nil {
		return &TransportError{Op: "query participations", Err: err}
	}

	if len(facts) > 0 {
		keys := make([]docstore.Key, len(facts))
		for i, doc := range facts {
			keys[i] = doc.Key()
		}
		if err := e.batchDelete(ctx, keys); err != nil {
			return &TransportError{Op: "delete participations", Err: err}
		}
	}

	if err := e.delete(ctx, docstore.Expenses, expenseID); err != nil {
		return &TransportError{Op: "delete expense header", Err: err}
	}

	e.log.Info("Expense deleted", "expense_id", expenseID, "facts", len(facts))
	return nil
}
