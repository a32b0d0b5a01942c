package core

// convert.go provides conversion functions for CSV cells and form inputs.
//
// Spreadsheet exports carry artifacts that are not part of the value:
//   - surrounding whitespace and quotes
//   - Excel formula prefixes (="10.5")
//
// Coordinates must be plain decimal or scientific numbers within WGS84
// range. Codes are "integer-like": "2" and "2.0" are both code 2.

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a plain numeric literal.
// It rejects forms ParseFloat would accept but a spreadsheet user never means
// (hex floats, "Inf", "NaN", underscores).
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	errEmptyValue    = errors.New("required field is empty")
	errInvalidNumber = errors.New("invalid number format")
)

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// ParseNumber parses a cleaned numeric cell.
func ParseNumber(s string) (float64, error) {
	if s == "" {
		return 0, errEmptyValue
	}
	if !numericRegex.MatchString(s) {
		return 0, errInvalidNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, errInvalidNumber
	}
	return f, nil
}

// ParseLatitude parses a latitude and checks it is within [-90, 90].
func ParseLatitude(s string) (float64, error) {
	return parseInRange(s, 90)
}

// ParseLongitude parses a longitude and checks it is within [-180, 180].
func ParseLongitude(s string) (float64, error) {
	return parseInRange(s, 180)
}

func parseInRange(s string, limit float64) (float64, error) {
	f, err := ParseNumber(s)
	if err != nil {
		return 0, err
	}
	if f < -limit || f > limit {
		return 0, fmt.Errorf("out of range [%g, %g]", -limit, limit)
	}
	return f, nil
}

// ParseCode parses a Code cell. Blank, non-numeric and fractional values
// produce an invalid Code that keeps the raw text for display.
func ParseCode(raw string) Code {
	c := Code{Raw: CleanCell(raw)}
	f, err := ParseNumber(c.Raw)
	if err != nil {
		return c
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return c
	}
	c.Value = int(f)
	c.Valid = true
	return c
}

// ParseManualPoint parses the two manual-entry inputs.
func ParseManualPoint(rawLat, rawLng string) (ManualPoint, error) {
	lat, err := ParseLatitude(CleanCell(rawLat))
	if err != nil {
		return ManualPoint{}, fmt.Errorf("manual latitude %q: %w", rawLat, err)
	}
	lng, err := ParseLongitude(CleanCell(rawLng))
	if err != nil {
		return ManualPoint{}, fmt.Errorf("manual longitude %q: %w", rawLng, err)
	}
	return ManualPoint{Latitude: lat, Longitude: lng}, nil
}

// FormatCoordinate renders a coordinate with the shortest exact
// representation, keeping a ".0" on whole numbers so 10 reads as 10.0.
func FormatCoordinate(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
