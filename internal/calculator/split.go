package calculator

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitbill/internal/models"
)

// centPlaces is the precision of an equal share before the last participant absorbs the remainder.
const centPlaces = 2

var hundred = decimal.NewFromInt(100)

// InvalidSplitError reports split inputs that fail validation. No write is attempted after it.
type InvalidSplitError struct {
	SplitType models.SplitType
	Reason    string
}

func (e *InvalidSplitError) Error() string {
	return fmt.Sprintf("invalid %s split: %s", e.SplitType, e.Reason)
}

func invalid(t models.SplitType, format string, args ...any) error {
	return &InvalidSplitError{SplitType: t, Reason: fmt.Sprintf(format, args...)}
}

// ComputeAllocations turns a total, the participants and a split policy into one PaymentDetail per
// participant, in participant order.
//
// raw holds one input per participant for Percentage (percent values) and ByAmount (amounts);
// it is ignored for Equally.
//
// Equally and ByAmount shares add up to total exactly when summed in decimal with SumAmounts. A plain
// float64 sum of the returned amounts can be off by rounding error.
func ComputeAllocations(total float64, participants []models.Participant, splitType models.SplitType, raw []string) ([]models.PaymentDetail, error) {
	if !finite(total) {
		return nil, invalid(splitType, "total is not a finite number")
	}
	if len(participants) == 0 {
		return nil, invalid(splitType, "must have at least one participant")
	}

	switch splitType {
	case models.SplitEqually:
		return splitEqually(total, participants), nil
	case models.SplitPercentage:
		return splitByPercentage(total, participants, raw)
	case models.SplitByAmount:
		return splitByAmount(total, participants, raw)
	default:
		return nil, invalid(splitType, "unknown split type")
	}
}

// splitEqually gives everyone the same share truncated to cents; the last participant absorbs the
// remainder so the shares add up to exactly total.
func splitEqually(total float64, participants []models.Participant) []models.PaymentDetail {
	t := decimal.NewFromFloat(total)
	n := decimal.NewFromInt(int64(len(participants)))
	share := t.Div(n).Truncate(centPlaces)
	last := t.Sub(share.Mul(n.Sub(decimal.NewFromInt(1))))

	details := make([]models.PaymentDetail, len(participants))
	for i, p := range participants {
		amount := share
		if i == len(participants)-1 {
			amount = last
		}
		details[i] = models.PaymentDetail{ParticipantID: p.ID, Amount: amount.InexactFloat64()}
	}
	return details
}

// splitByPercentage requires the percentages to add up to exactly 100. Each share is
// percentage/100 × total in floating point, with no remainder correction, so the shares may
// drift from total by rounding error.
func splitByPercentage(total float64, participants []models.Participant, raw []string) ([]models.PaymentDetail, error) {
	percentages, err := parseInputs(models.SplitPercentage, participants, raw)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, p := range percentages {
		sum = sum.Add(p)
	}
	if !sum.Equal(hundred) {
		return nil, invalid(models.SplitPercentage, "percentages add up to %s, not 100", sum)
	}

	details := make([]models.PaymentDetail, len(participants))
	for i, p := range participants {
		pct := percentages[i].InexactFloat64()
		details[i] = models.PaymentDetail{ParticipantID: p.ID, Amount: (pct / 100) * total}
	}
	return details, nil
}

// splitByAmount requires one amount per participant adding up to exactly total.
func splitByAmount(total float64, participants []models.Participant, raw []string) ([]models.PaymentDetail, error) {
	amounts, err := parseInputs(models.SplitByAmount, participants, raw)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	if !sum.Equal(decimal.NewFromFloat(total)) {
		return nil, invalid(models.SplitByAmount, "amounts add up to %s, not the total %s", sum, decimal.NewFromFloat(total))
	}

	details := make([]models.PaymentDetail, len(participants))
	for i, p := range participants {
		details[i] = models.PaymentDetail{ParticipantID: p.ID, Amount: amounts[i].InexactFloat64()}
	}
	return details, nil
}

// ValidateDetails checks payment details supplied by a caller instead of computed ones: exactly one
// per participant in participant order, each finite, adding up to total in decimal.
func ValidateDetails(total float64, participants []models.Participant, splitType models.SplitType, details []models.PaymentDetail) error {
	if !finite(total) {
		return invalid(splitType, "total is not a finite number")
	}
	if len(details) != len(participants) {
		return invalid(splitType, "got %d payment details for %d participants", len(details), len(participants))
	}
	for i, d := range details {
		if d.ParticipantID != participants[i].ID {
			return invalid(splitType, "payment detail %d is for %q, not participant %q", i+1, d.ParticipantID, participants[i].ID)
		}
		if !finite(d.Amount) {
			return invalid(splitType, "payment detail %d is not a finite number", i+1)
		}
	}
	if sum, want := SumAmounts(details), decimal.NewFromFloat(total); !sum.Equal(want) {
		return invalid(splitType, "payment details add up to %s, not the total %s", sum, want)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func parseInputs(t models.SplitType, participants []models.Participant, raw []string) ([]decimal.Decimal, error) {
	if len(raw) != len(participants) {
		return nil, invalid(t, "got %d inputs for %d participants", len(raw), len(participants))
	}
	values := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, invalid(t, "input %d (%q) is not a number", i+1, s)
		}
		values[i] = v
	}
	return values, nil
}

// SumAmounts adds the amounts exactly, using the shortest decimal form of each float.
func SumAmounts(details []models.PaymentDetail) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range details {
		sum = sum.Add(decimal.NewFromFloat(d.Amount))
	}
	return sum
}
