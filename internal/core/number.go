// Package core holds the generation-record domain: the immutable table, the
// filter engine, the aggregates and the view selector.
//
// This file contains the numeric cell parsing shared by the data sources and
// the thousands-separated formatting used by the KPI row.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidNumber = errors.New("invalid number")

// ParseNumber converts a spreadsheet cell to float64.
//
// Blank cells and the usual missing-value markers yield NaN with no error.
// Thousands separators are accepted with a dot as the decimal separator.
//
// Examples:
//
//	ParseNumber("1,234.5") -> 1234.5, nil
//	ParseNumber("")        -> NaN, nil
//	ParseNumber("abc")     -> 0, ErrInvalidNumber
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "null", "none":
		return math.NaN(), nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// FormatNumber renders v with two decimals and comma thousands separators,
// e.g. 1234567.891 -> "1,234,567.89". NaN renders as "nan".
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	if v < 0 && s != "0.00" {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteString(frac)
	return b.String()
}
