package core

// csvread.go decodes uploaded CSV files into a Table.
//
// Uploads come from spreadsheets on every platform, so the reader:
//   - strips a leading UTF-8/UTF-16 BOM (Excel on Windows adds one)
//   - replaces invalid UTF-8 with U+FFFD instead of failing
//   - tolerates ragged rows (short rows read as blank cells)
//   - drops rows whose cells are all blank (trailing ",,," lines)
//
// Header names are matched exactly; the first occurrence of a name wins.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyFile is returned when an upload has no header row.
var ErrEmptyFile = errors.New("empty file: the uploaded CSV has no header row")

// HeaderIndex maps column names to their position in the CSV row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
// Duplicate names keep their first position.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// Table is a decoded CSV file.
type Table struct {
	Headers []string
	Rows    [][]string
	Lines   []int // 1-based source line of each row
	index   HeaderIndex
}

// Has reports whether the table has a column with the exact given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the value of column name in row i, or "" if the column is
// absent or the row is short.
func (t *Table) Cell(i int, name string) string {
	pos, ok := t.index[name]
	if !ok || pos >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][pos]
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ReadTable decodes a CSV stream into a Table.
func ReadTable(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	t := &Table{
		Headers: header,
		index:   MakeHeaderIndex(header),
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isEmptyRow(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, record)
		t.Lines = append(t.Lines, line)
	}

	return t, nil
}

// ReadUpload decodes an Upload. A nil or zero-length upload is ErrEmptyFile.
func ReadUpload(u *Upload) (*Table, error) {
	if u == nil || len(u.Data) == 0 {
		return nil, ErrEmptyFile
	}
	return ReadTable(bytes.NewReader(u.Data))
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
