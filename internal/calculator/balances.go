package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitbill/internal/models"
)

// MemberBalance represents the balance information for one participant across a ledger.
type MemberBalance struct {
	ParticipantID string  `json:"participantID"`
	NetBalance    float64 `json:"netBalance"` // Positive = owed money, Negative = owes money
	TotalPaid     float64 `json:"totalPaid"`  // Total amount paid across all expenses
	TotalOwed     float64 `json:"totalOwed"`  // Total amount this person owes
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string  `json:"from"` // Person who owes
	To     string  `json:"to"`   // Person who is owed
	Amount float64 `json:"amount"`
}

// settleThreshold ignores residues below one cent.
var settleThreshold = decimal.New(1, -2)

// CalculateBalances computes who owes whom across a set of expenses.
//
// Algorithm:
// - For each expense: payer contributed +total, each payment detail is owed by its participant
// - Aggregate: net_balance = total_paid - total_owed
// - Debt edges: simplified using greedy matching of debtors and creditors
//
// Expenses without payment details contribute nothing; there is no split to attribute.
func CalculateBalances(expenses []models.Expense) ([]MemberBalance, []DebtEdge) {
	paid := make(map[string]decimal.Decimal)
	owed := make(map[string]decimal.Decimal)
	seen := make(map[string]bool)

	for _, e := range expenses {
		if e.Payer.ID == "" || len(e.PaymentDetails) == 0 {
			continue
		}
		seen[e.Payer.ID] = true
		paid[e.Payer.ID] = paid[e.Payer.ID].Add(decimal.NewFromFloat(e.TotalAmount))

		for _, d := range e.PaymentDetails {
			seen[d.ParticipantID] = true
			owed[d.ParticipantID] = owed[d.ParticipantID].Add(decimal.NewFromFloat(d.Amount))
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	balances := make([]MemberBalance, 0, len(ids))
	net := make(map[string]decimal.Decimal, len(ids))
	var creditors, debtors []string
	for _, id := range ids {
		n := paid[id].Sub(owed[id])
		net[id] = n
		balances = append(balances, MemberBalance{
			ParticipantID: id,
			NetBalance:    n.InexactFloat64(),
			TotalPaid:     paid[id].InexactFloat64(),
			TotalOwed:     owed[id].InexactFloat64(),
		})
		switch {
		case n.GreaterThanOrEqual(settleThreshold):
			creditors = append(creditors, id)
		case n.Neg().GreaterThanOrEqual(settleThreshold):
			debtors = append(debtors, id)
		}
	}

	// Largest amounts first so the greedy match needs fewer transfers
	sort.SliceStable(creditors, func(i, j int) bool { return net[creditors[i]].GreaterThan(net[creditors[j]]) })
	sort.SliceStable(debtors, func(i, j int) bool { return net[debtors[i]].LessThan(net[debtors[j]]) })

	debtorBalance := make(map[string]decimal.Decimal, len(debtors))
	creditorBalance := make(map[string]decimal.Decimal, len(creditors))
	for _, d := range debtors {
		debtorBalance[d] = net[d].Neg()
	}
	for _, c := range creditors {
		creditorBalance[c] = net[c]
	}

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := debtors[i], creditors[j]

		amount := decimal.Min(debtorBalance[debtor], creditorBalance[creditor])
		if amount.GreaterThanOrEqual(settleThreshold) {
			edges = append(edges, DebtEdge{
				From:   debtor,
				To:     creditor,
				Amount: amount.Round(2).InexactFloat64(),
			})
		}

		debtorBalance[debtor] = debtorBalance[debtor].Sub(amount)
		creditorBalance[creditor] = creditorBalance[creditor].Sub(amount)

		if debtorBalance[debtor].LessThan(settleThreshold) {
			i++
		}
		if creditorBalance[creditor].LessThan(settleThreshold) {
			j++
		}
	}

	return balances, edges
}

// SharedExpenses returns the expenses where one of the two users paid and the other participates.
func SharedExpenses(expenses []models.Expense, userID, friendID string) []models.Expense {
	var shared []models.Expense
	for _, e := range expenses {
		userPaid := e.Payer.ID == userID && models.IndexOf(e.Participants, friendID) >= 0
		friendPaid := e.Payer.ID == friendID && models.IndexOf(e.Participants, userID) >= 0
		if userPaid || friendPaid {
			shared = append(shared, e)
		}
	}
	return shared
}

// NetBalanceWith returns how much friendID owes userID across their shared expenses.
// Negative means userID owes friendID.
func NetBalanceWith(expenses []models.Expense, userID, friendID string) float64 {
	balance := decimal.Zero
	for _, e := range SharedExpenses(expenses, userID, friendID) {
		if e.Payer.ID == userID {
			balance = balance.Add(decimal.NewFromFloat(e.AmountFor(friendID)))
		} else {
			balance = balance.Sub(decimal.NewFromFloat(e.AmountFor(userID)))
		}
	}
	return balance.InexactFloat64()
}
