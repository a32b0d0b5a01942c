package core

// validation.go gates uploads on their headers and turns rows into points.
//
// Validation happens at two levels:
//  1. Header validation: all required columns must be present. This is
//     all-or-nothing; a dataset with two of three columns is rejected the
//     same way as an unrelated file.
//  2. Row validation: each row's coordinates must parse and be in range.
//     A bad row is reported as a RowError and skipped; the rest render.

import (
	"errors"
	"fmt"
	"strings"
)

// Dataset names an uploaded file's role.
type Dataset string

const (
	DatasetPrimary   Dataset = "primary"
	DatasetAuxiliary Dataset = "auxiliary"
)

// Column names as they must appear in the CSV header.
const (
	ColumnLatitude     = "Latitude"
	ColumnLongitude    = "Longitude"
	ColumnCode         = "Code"
	ColumnSerialNumber = "sl.no"
)

// Required columns per dataset, in the order they are reported.
var (
	PrimaryColumns   = []string{ColumnLatitude, ColumnLongitude, ColumnCode}
	AuxiliaryColumns = []string{ColumnSerialNumber, ColumnLatitude, ColumnLongitude}
)

// ErrNoValidRows is returned when a primary dataset passes the header check
// but none of its rows have usable coordinates, so there is no centroid.
var ErrNoValidRows = errors.New("no valid rows: no row has usable coordinates")

// SchemaError reports required columns missing from an upload.
type SchemaError struct {
	Dataset  Dataset
	Required []string
	Missing  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema: missing required columns: %s", e.Dataset, strings.Join(e.Missing, ", "))
}

// Warning returns the user-visible warning, which always names every
// required column rather than only the missing ones.
func (e *SchemaError) Warning() string {
	quoted := make([]string, len(e.Required))
	for i, c := range e.Required {
		quoted[i] = "'" + c + "'"
	}
	which := "main"
	if e.Dataset == DatasetAuxiliary {
		which = "additional"
	}
	return fmt.Sprintf("The %s uploaded CSV file does not contain the required columns: %s.",
		which, strings.Join(quoted, ", "))
}

// RowError describes one skipped row.
type RowError struct {
	Dataset Dataset `json:"dataset"`
	Line    int     `json:"line"` // 1-based line in the uploaded file
	Field   string  `json:"field"`
	Value   string  `json:"value"`
	Reason  string  `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: %s %q: %s", e.Line, e.Field, e.Value, e.Reason)
}

// requiredColumns returns the required header names for a dataset.
func requiredColumns(ds Dataset) []string {
	if ds == DatasetAuxiliary {
		return AuxiliaryColumns
	}
	return PrimaryColumns
}

// ValidateColumns checks that every required column for ds is present.
// Returns a *SchemaError listing the missing columns.
func ValidateColumns(t *Table, ds Dataset) error {
	required := requiredColumns(ds)
	var missing []string
	for _, c := range required {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Dataset: ds, Required: required, Missing: missing}
	}
	return nil
}

// parseLatLng parses the coordinate cells of row i. The returned RowError
// is only meaningful when ok is false.
func parseLatLng(t *Table, i int, ds Dataset) (lat, lng float64, ok bool, rerr RowError) {
	rerr = RowError{Dataset: ds, Line: t.Lines[i]}

	rawLat := CleanCell(t.Cell(i, ColumnLatitude))
	lat, err := ParseLatitude(rawLat)
	if err != nil {
		rerr.Field, rerr.Value, rerr.Reason = ColumnLatitude, rawLat, err.Error()
		return 0, 0, false, rerr
	}

	rawLng := CleanCell(t.Cell(i, ColumnLongitude))
	lng, err = ParseLongitude(rawLng)
	if err != nil {
		rerr.Field, rerr.Value, rerr.Reason = ColumnLongitude, rawLng, err.Error()
		return 0, 0, false, rerr
	}

	return lat, lng, true, rerr
}

// ParsePrimary converts a validated primary table into sample points.
// Rows with unusable coordinates are returned as RowErrors instead.
func ParsePrimary(t *Table) ([]SamplePoint, []RowError) {
	points := make([]SamplePoint, 0, t.Len())
	var rowErrs []RowError

	for i := range t.Rows {
		lat, lng, ok, rerr := parseLatLng(t, i, DatasetPrimary)
		if !ok {
			rowErrs = append(rowErrs, rerr)
			continue
		}
		points = append(points, SamplePoint{
			Latitude:     lat,
			Longitude:    lng,
			Code:         ParseCode(t.Cell(i, ColumnCode)),
			RowIndex:     i,
			RawLatitude:  CleanCell(t.Cell(i, ColumnLatitude)),
			RawLongitude: CleanCell(t.Cell(i, ColumnLongitude)),
		})
	}

	return points, rowErrs
}

// ParseAuxiliary converts a validated auxiliary table into points.
// The serial number is kept verbatim; it may be any text.
func ParseAuxiliary(t *Table) ([]AuxiliaryPoint, []RowError) {
	points := make([]AuxiliaryPoint, 0, t.Len())
	var rowErrs []RowError

	for i := range t.Rows {
		lat, lng, ok, rerr := parseLatLng(t, i, DatasetAuxiliary)
		if !ok {
			rowErrs = append(rowErrs, rerr)
			continue
		}
		points = append(points, AuxiliaryPoint{
			SerialNumber: CleanCell(t.Cell(i, ColumnSerialNumber)),
			Latitude:     lat,
			Longitude:    lng,
			RowIndex:     i,
			RawLatitude:  CleanCell(t.Cell(i, ColumnLatitude)),
			RawLongitude: CleanCell(t.Cell(i, ColumnLongitude)),
		})
	}

	return points, rowErrs
}
