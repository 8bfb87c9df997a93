// Package prefill suggests expense form values from the text lines of a receipt.
// Suggestions are advisory: the user edits them before anything reaches the split calculator.
package prefill

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Extractor turns a receipt image into lines of text.
type Extractor interface {
	ExtractLines(ctx context.Context, image []byte) ([]string, error)
}

// KnownStores are matched case-insensitively, in this order, against each receipt line.
var KnownStores = []string{"Trader Joe's", "Costco", "Walmart", "Target", "Restaurant"}

var dollarAmount = regexp.MustCompile(`\$\s*\d+(\.\d{2})?`)

// Suggestion holds the values detected on a receipt. Empty fields were not found.
type Suggestion struct {
	Description string `json:"description"`

	// TotalAmount is the detected amount with everything but digits and dots removed.
	TotalAmount string `json:"totalAmount"`
}

// Amount parses TotalAmount. It returns false when no usable amount was detected.
func (s Suggestion) Amount() (decimal.Decimal, bool) {
	if s.TotalAmount == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s.TotalAmount)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Parse scans lines top to bottom. The first line naming a known store sets the description and the
// first line holding a dollar amount sets the total, using the last amount on that line.
func Parse(lines []string) Suggestion {
	var s Suggestion
	for _, line := range lines {
		if s.Description == "" {
			s.Description = detectStore(line)
		}
		if s.TotalAmount == "" {
			if matches := dollarAmount.FindAllString(line, -1); len(matches) > 0 {
				s.TotalAmount = cleanAmount(matches[len(matches)-1])
			}
		}
		if s.Description != "" && s.TotalAmount != "" {
			break
		}
	}
	return s
}

// FromImage extracts the lines of image and parses them.
func FromImage(ctx context.Context, ex Extractor, image []byte) (Suggestion, error) {
	lines, err := ex.ExtractLines(ctx, image)
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to extract receipt text: %w", err)
	}
	return Parse(lines), nil
}

// TextExtractor treats its input as already-recognized UTF-8 text, one receipt line per text line.
type TextExtractor struct{}

func (TextExtractor) ExtractLines(_ context.Context, text []byte) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(string(text)))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func detectStore(line string) string {
	lower := strings.ToLower(line)
	for _, store := range KnownStores {
		if strings.Contains(lower, strings.ToLower(store)) {
			return store
		}
	}
	return ""
}

func cleanAmount(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
}
