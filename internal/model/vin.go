// Package model defines the core data types for the salvage pipeline:
// VINs, listing records, and image descriptors.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// vinPattern is the 17-character VIN grammar. Positions 1-8 and 10-17 draw
// from the VIN alphabet (letters minus I/O/Q, plus digits); position 9 is the
// check digit, a digit or 'X'.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{8}[0-9X][A-HJ-NPR-Z0-9]{8}$`)

// lotPattern matches a salvage lot/stock number: eight digits.
var lotPattern = regexp.MustCompile(`^\d{8}$`)

// Vin is a validated Vehicle Identification Number. The zero value is not
// valid; construct one through ParseVin.
type Vin string

// ParseVin validates and normalizes a VIN. Input is trimmed and upper-cased
// before matching, so user-pasted values with stray whitespace or lowercase
// letters are accepted.
func ParseVin(raw string) (Vin, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if len(v) != 17 {
		return "", fmt.Errorf("vin %q: expected 17 characters, got %d", raw, len(v))
	}
	if !vinPattern.MatchString(v) {
		return "", fmt.Errorf("vin %q: not a valid VIN", raw)
	}
	return Vin(v), nil
}

func (v Vin) String() string { return string(v) }

// ParseLotNumber validates a lot/stock number, stripping any non-digit
// characters first (the sites format them as "Lot # 12345678" and similar).
func ParseLotNumber(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if !lotPattern.MatchString(digits) {
		return "", fmt.Errorf("lot number %q: expected 8 digits", raw)
	}
	return digits, nil
}
