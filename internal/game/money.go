package game

import (
	"strings"

	"github.com/shopspring/decimal"
)

const CurrencySymbol = "₹"

// ParseBet parses a bet typed by the player. Anything that is not a positive
// amount in whole paise is rejected with ErrInvalidBet.
func ParseBet(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidBet
	}
	bet, err := decimal.NewFromString(raw)
	if err != nil || !validBet(bet) {
		return decimal.Zero, ErrInvalidBet
	}
	return bet, nil
}

// validBet keeps stakes in whole paise, the precision balances are stored at.
func validBet(bet decimal.Decimal) bool {
	return bet.IsPositive() && bet.Equal(bet.Round(2))
}

// FormatAmount renders an amount with the currency symbol and two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return CurrencySymbol + d.StringFixed(2)
}

// FormatINR renders an amount using Indian digit grouping (1,00,000.00).
func FormatINR(d decimal.Decimal, places int32) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	fixed := d.Abs().StringFixed(places)
	intPart, frac, hasFrac := strings.Cut(fixed, ".")
	out := sign + CurrencySymbol + groupIndian(intPart)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
