// Package core provides the hours ledger: duration parsing, the per-day
// ledger of allocations, reconciliation against the clocked total and the
// calendar and report aggregations built on top of it.
//
// This file contains functions for parsing free-form duration input and
// converting hours between their display, in-memory and storage forms.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDurationInput converts a free-form duration string into fractional hours.
//
// Every non-digit character is dropped first; the remaining digits are read
// by length:
//
//	"8", "10"  -> whole hours
//	"730"      -> 7h30m = 7.5
//	"1030"     -> 10h30m = 10.5
//	"175"      -> 1h75m = 2.25
//
// Minutes above 59 carry into the hours. Empty input yields 0 with no error.
// Input that has no digits or more than four digits yields ErrInvalidDuration.
func ParseDurationInput(input string) (float64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)

	var hours, minutes int
	switch len(digits) {
	case 1, 2:
		hours, _ = strconv.Atoi(digits)
	case 3:
		hours, _ = strconv.Atoi(digits[:1])
		minutes, _ = strconv.Atoi(digits[1:])
	case 4:
		hours, _ = strconv.Atoi(digits[:2])
		minutes, _ = strconv.Atoi(digits[2:])
	default:
		return 0, fieldError("duration", ErrInvalidDuration, fmt.Sprintf("cannot read %q", input))
	}
	return float64(hours) + float64(minutes)/60, nil
}

// ParseDuration is the fail-closed form of ParseDurationInput: anything it
// cannot read becomes 0.
func ParseDuration(input string) float64 {
	h, err := ParseDurationInput(input)
	if err != nil {
		return 0
	}
	return h
}

// FormatHours renders fractional hours as HH:MM. Minutes are rounded to the
// nearest whole minute, carrying into the hour when they round up to 60.
// Negative values keep their sign so over-allocation stays visible.
func FormatHours(hours float64) string {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return "00:00"
	}
	sign := ""
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	h := math.Floor(hours)
	m := math.Round((hours - h) * 60)
	if m >= 60 {
		h++
		m -= 60
	}
	if h == 0 && m == 0 {
		sign = ""
	}
	return fmt.Sprintf("%s%02d:%02d", sign, int64(h), int64(m))
}

// ToStorageDecimal rounds hours to two decimal places, half away from zero.
func ToStorageDecimal(hours float64) float64 {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0
	}
	return decimal.NewFromFloat(hours).Round(2).InexactFloat64()
}

// hundredths converts hours to whole hundredths of an hour at storage precision.
func hundredths(hours float64) int64 {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0
	}
	return decimal.NewFromFloat(hours).Shift(2).Round(0).IntPart()
}

func fromHundredths(n int64) float64 {
	return decimal.New(n, -2).InexactFloat64()
}

func validHours(h float64) bool {
	return h >= 0 && !math.IsNaN(h) && !math.IsInf(h, 0)
}
