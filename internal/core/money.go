// Package core provides the canonical ledger types shared by every stage of a run.
//
// This file contains the parsing of monetary amounts as they appear in bank
// exports: integers with optional thousands separators, or an empty cell.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts an exported amount cell to a decimal.
//
// Thousands separators and surrounding quotes or spaces are stripped. An empty
// cell is 0. A leading minus is kept; banks use it for overdrawn balances.
// Anything else returns a *NumericFormatError.
//
// Examples:
//
//	ParseAmount("")         -> 0
//	ParseAmount("1,234")    -> 1234
//	ParseAmount(" 120000 ") -> 120000
//	ParseAmount("12.5")     -> 12.5
//	ParseAmount("abc")      -> error
func ParseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	body := strings.TrimPrefix(s, "-")
	dots := 0
	for _, r := range body {
		switch {
		case r == '.':
			dots++
		case !unicode.IsDigit(r) || r > unicode.MaxASCII:
			return decimal.Zero, &NumericFormatError{Field: field, Value: s}
		}
	}
	if body == "" || dots > 1 || strings.HasPrefix(body, ".") || strings.HasSuffix(body, ".") {
		return decimal.Zero, &NumericFormatError{Field: field, Value: s}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &NumericFormatError{Field: field, Value: s}
	}
	return d, nil
}
