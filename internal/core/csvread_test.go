package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMakeHeaderIndex(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   HeaderIndex
	}{
		{
			name:   "simple headers",
			header: []string{"Latitude", "Longitude", "Code"},
			want:   HeaderIndex{"Latitude": 0, "Longitude": 1, "Code": 2},
		},
		{
			name:   "duplicates keep first position",
			header: []string{"Code", "Latitude", "Code"},
			want:   HeaderIndex{"Code": 0, "Latitude": 1},
		},
		{
			name:   "empty header",
			header: []string{},
			want:   HeaderIndex{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MakeHeaderIndex(tt.header)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MakeHeaderIndex(%v) mismatch (-want +got):\n%s", tt.header, diff)
			}
		})
	}
}

func TestReadTable(t *testing.T) {
	input := "Latitude,Longitude,Code\n10,20,1\n\n12, 22,2\n"

	table, err := ReadTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Latitude", "Longitude", "Code"}, table.Headers); diff != "" {
		t.Errorf("Headers mismatch (-want +got):\n%s", diff)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if got := table.Cell(1, "Longitude"); got != " 22" {
		t.Errorf("Cell(1, Longitude) = %q, want %q", got, " 22")
	}
	// Blank line 3 is skipped, so the second row sits on line 4.
	if diff := cmp.Diff([]int{2, 4}, table.Lines); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTable_SkipsBlankRows(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Latitude,Longitude,Code\n,,\n10,20,1\n , ,\n"))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestIsEmptyRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{name: "empty slice", row: []string{}, want: true},
		{name: "multiple empty strings", row: []string{"", "", ""}, want: true},
		{name: "whitespace only cells", row: []string{"   ", "\t", "  \t  "}, want: true},
		{name: "one value", row: []string{"", "1", ""}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyRow(tt.row); got != tt.want {
				t.Errorf("isEmptyRow(%q) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

func TestReadTable_StripsBOM(t *testing.T) {
	input := "\ufeffLatitude,Longitude,Code\n1,2,3\n"

	table, err := ReadTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if !table.Has("Latitude") {
		t.Errorf("Has(Latitude) = false after BOM; headers = %q", table.Headers)
	}
}

func TestReadTable_ShortRow(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Latitude,Longitude,Code\n10,20\n"))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got := table.Cell(0, "Code"); got != "" {
		t.Errorf("Cell(0, Code) = %q, want empty", got)
	}
	if got := table.Cell(0, "Missing"); got != "" {
		t.Errorf("Cell(0, Missing) = %q, want empty", got)
	}
}

func TestReadTable_HeaderMatchIsExact(t *testing.T) {
	table, err := ReadTable(strings.NewReader("latitude,LONGITUDE,Code\n"))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Has("Latitude") || table.Has("Longitude") {
		t.Error("header lookup should be case-sensitive")
	}
	if !table.Has("Code") {
		t.Error("Has(Code) = false, want true")
	}

	table, err = ReadTable(strings.NewReader(" Latitude, Longitude, Code\n10,20,1\n"))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if diff := cmp.Diff([]string{" Latitude", " Longitude", " Code"}, table.Headers); diff != "" {
		t.Errorf("Headers mismatch (-want +got):\n%s", diff)
	}
	var schemaErr *SchemaError
	if err := ValidateColumns(table, DatasetPrimary); !errors.As(err, &schemaErr) {
		t.Errorf("ValidateColumns() error = %v, want *SchemaError for space-padded headers", err)
	}
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{name: "empty", input: "", wantCode: "FILE005"},
		{name: "bare quote", input: "Latitude,Longitude,Code\n1,\"2,3\n", wantCode: "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", err, got, tt.wantCode)
			}
		})
	}
}

func TestReadUpload_Empty(t *testing.T) {
	for _, u := range []*Upload{nil, {FileName: "x.csv"}} {
		if _, err := ReadUpload(u); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("ReadUpload(%v) error = %v, want ErrEmptyFile", u, err)
		}
	}
}
