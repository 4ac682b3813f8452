// Package extract derives monetary amounts and expense lines from normalized text.
package extract

import (
	"regexp"
	"strings"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

// amountPattern matches monetary amount tokens: an optional currency
// symbol, digit groups with optional thousands separators and an
// optional two-decimal fraction. The currency symbol is optional, so
// bare numbers with a proper fraction also match.
var amountPattern = regexp.MustCompile(`\$?\d+(?:,\d{3})*(?:\.\d{2})?`)

// expenseKeywords is the fixed set of markers for expense-related lines.
var expenseKeywords = []string{
	"total",
	"amount due",
	"paid",
	"charged",
	"invoice",
	"receipt",
	"order",
	"purchase",
}

// Facts scans a normalized body for monetary amounts and
// expense-related lines. Amounts are the non-overlapping matches of
// the amount pattern, left to right, duplicates retained. Expense
// lines are the body's lines whose lowercase form contains at least
// one keyword, trimmed, in original order. Absence of matches yields
// empty sequences; there are no error conditions.
func Facts(body string) api.Facts {
	return api.Facts{
		Amounts:      amountPattern.FindAllString(body, -1),
		ExpenseLines: expenseLines(body),
	}
}

func expenseLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		lower := strings.ToLower(line)
		for _, keyword := range expenseKeywords {
			if strings.Contains(lower, keyword) {
				lines = append(lines, strings.TrimSpace(line))
				break
			}
		}
	}
	return lines
}
