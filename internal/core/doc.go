// Package core provides the business logic for the soil status map.
//
// This package holds all domain logic independent of any UI or transport
// layer: it turns uploaded CSV bytes into a classified [MapSurface]. It can be
// used by web handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// Every interaction re-runs the whole pipeline from an immutable
// [RequestState]:
//
//  1. [ReadTable] decodes the upload (BOM stripped, invalid UTF-8 replaced).
//  2. [ValidateColumns] gates on the required headers. A missing column is a
//     [*SchemaError] and halts composition with a user-facing warning.
//  3. [ParsePrimary] and [ParseAuxiliary] turn rows into typed points. Rows
//     with unusable coordinates become [RowError] values and are skipped.
//  4. [NewMapSurface] centers the view on the centroid of the sample points
//     at [DefaultZoom]; markers are added for samples, auxiliary points and
//     manual points in that order.
//
// [Compose] runs steps 1-4 and returns a [Composition].
//
// # Classification
//
// Sample marker color is a pure function of the row's code, looked up in a
// [Classifier]. [DefaultClassifier] maps 1 to red and 2 to blue; every other
// code, including 3 and non-numeric codes, falls back to green. The legend
// lists three codes, so the code-3 legend swatch is drawn with the fallback
// color.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - SCH001-SCH002: Schema errors (primary, auxiliary)
//   - ROW001-ROW002: Row errors (skipped rows, no usable rows)
//   - RAS001, EXP001-EXP002: Rasterization and export errors
//   - FILE001-FILE005: File errors (size, encoding, format)
//   - SES001, REQ001-REQ002, RATE001, AUTH001: Request errors
package core
