package ingest

import (
	"math"
	"regexp"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var nonAmountChars = regexp.MustCompile(`[^0-9.]`)

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// Money is an optional dollar amount.
type Money struct {
	Amount float64
	Valid  bool
}

// parseMoney strips everything except digits and the decimal point, then
// parses what remains. Empty, malformed or non-finite input is invalid.
func parseMoney(raw string) Money {
	clean := nonAmountChars.ReplaceAllString(raw, "")
	if clean == "" {
		return Money{}
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Money{}
	}
	return Money{Amount: v, Valid: true}
}

// Format renders whole US dollars with en-US digit grouping, e.g. "$1,500,000".
func (m Money) Format() (string, bool) {
	if !m.Valid {
		return "", false
	}
	return "$" + usdPrinter.Sprintf("%.0f", math.Round(m.Amount)), true
}
