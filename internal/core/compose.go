package core

import (
	"context"
	"errors"

	"github.com/JonMunkholm/SoilMap/internal/logging"
)

// ErrNoPrimary is returned by Compose when no primary dataset was uploaded.
var ErrNoPrimary = errors.New("no primary dataset uploaded")

// RequestState is the immutable input of one pipeline pass. It is rebuilt
// from the caller's session on every interaction.
type RequestState struct {
	Primary   *Upload
	Auxiliary *Upload
	Manual    []ManualPoint
}

// ComposeReport summarises a pass for display and logging.
type ComposeReport struct {
	PrimaryRows    int        `json:"primary_rows"`
	AuxiliaryRows  int        `json:"auxiliary_rows"`
	ManualPoints   int        `json:"manual_points"`
	SkippedRows    []RowError `json:"skipped_rows,omitempty"`
	AuxiliaryError error      `json:"-"` // schema or decode failure of the auxiliary file
}

// Composition is the result of a successful pass.
type Composition struct {
	Surface *MapSurface
	Legend  []LegendEntry
	Report  ComposeReport
}

// Compose runs the full pipeline for state.
//
// It returns ErrNoPrimary when there is nothing to draw, a *SchemaError when
// the primary file lacks a required column, ErrNoValidRows when no primary
// row is usable, and decode errors from ReadTable. Problems with the
// auxiliary file never halt the pass; they are recorded in the report.
func Compose(ctx context.Context, state RequestState, cls Classifier) (*Composition, error) {
	logger := logging.FromContext(ctx)

	if state.Primary == nil {
		return nil, ErrNoPrimary
	}

	table, err := ReadUpload(state.Primary)
	if err != nil {
		return nil, err
	}
	if err := ValidateColumns(table, DatasetPrimary); err != nil {
		return nil, err
	}

	samples, skipped := ParsePrimary(table)
	surface, err := NewMapSurface(samples)
	if err != nil {
		return nil, err
	}
	for _, p := range samples {
		surface.AddSample(p, cls)
	}

	report := ComposeReport{
		PrimaryRows: len(samples),
		SkippedRows: skipped,
	}

	if state.Auxiliary != nil {
		aux, auxSkipped, err := readAuxiliary(state.Auxiliary)
		if err != nil {
			report.AuxiliaryError = err
			logger.Debug("auxiliary dataset rejected", "error", err)
		}
		for _, p := range aux {
			surface.AddAuxiliary(p)
		}
		report.AuxiliaryRows = len(aux)
		report.SkippedRows = append(report.SkippedRows, auxSkipped...)
	}

	for _, p := range state.Manual {
		surface.AddManual(p)
	}
	report.ManualPoints = len(state.Manual)

	logger.Debug("map composed",
		"primary_rows", report.PrimaryRows,
		"auxiliary_rows", report.AuxiliaryRows,
		"manual_points", report.ManualPoints,
		"skipped_rows", len(report.SkippedRows),
		"markers", len(surface.Markers),
	)

	return &Composition{
		Surface: surface,
		Legend:  cls.Legend(),
		Report:  report,
	}, nil
}

func readAuxiliary(u *Upload) ([]AuxiliaryPoint, []RowError, error) {
	table, err := ReadUpload(u)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateColumns(table, DatasetAuxiliary); err != nil {
		return nil, nil, err
	}
	points, skipped := ParseAuxiliary(table)
	return points, skipped, nil
}
