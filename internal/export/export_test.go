package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lehigh-university-libraries/labeler/internal/models"
)

var testCrops = []models.Crop{
	{SourceURI: "s3://bucket/img1.jpg", BoundingBox: models.BoundingBox{0, 0, 10, 10}},
	{SourceURI: "s3://bucket/img2.jpg", BoundingBox: models.BoundingBox{12.5, 3, 40, 88.25}, Labeled: true, LabelerName: "Alex, Sam", Difficult: true},
}

func TestRows(t *testing.T) {
	rows := Rows(testCrops)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[1].BoundingBox != "12.5,3,40,88.25" {
		t.Errorf("Expected box string 12.5,3,40,88.25, got %s", rows[1].BoundingBox)
	}
	if rows[1].XMin != 12.5 || rows[1].YMax != 88.25 {
		t.Errorf("Unexpected coordinates: %+v", rows[1])
	}
}

func TestRoundTrip(t *testing.T) {
	expected := Rows(testCrops)

	for _, name := range []string{"queue.parquet", "queue.jsonl", "queue.csv"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteFile(path, expected); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if diff := cmp.Diff(expected, got); diff != "" {
				t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteCSVQuotesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, Rows(testCrops)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 lines, got %d", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[2], `"12.5,3,40,88.25"`) || !strings.Contains(lines[2], `"Alex, Sam"`) {
		t.Errorf("Expected comma fields to be quoted: %s", lines[2])
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
		wantErr  bool
	}{
		{path: "out.parquet", expected: FormatParquet},
		{path: "out.JSONL", expected: FormatJSONL},
		{path: "out.json", expected: FormatJSONL},
		{path: "out.csv", expected: FormatCSV},
		{path: "out.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for unsupported format, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestWriteUnsupportedFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, Format("xml"), nil); err == nil {
		t.Error("Expected error for unsupported format, got nil")
	}
}
