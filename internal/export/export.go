package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/labeler/internal/models"
)

// Format is an export file format
type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".json":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl, .csv)", filepath.Ext(path))
	}
}

// Row is one queue entry flattened for training-set tooling.
type Row struct {
	SourceURI   string  `json:"original_s3_uri" parquet:"original_s3_uri"`
	BoundingBox string  `json:"bounding_box" parquet:"bounding_box"`
	XMin        float64 `json:"xmin" parquet:"xmin"`
	YMin        float64 `json:"ymin" parquet:"ymin"`
	XMax        float64 `json:"xmax" parquet:"xmax"`
	YMax        float64 `json:"ymax" parquet:"ymax"`
	Labeled     bool    `json:"labeled" parquet:"labeled"`
	LabelerName string  `json:"labeler_name" parquet:"labeler_name"`
	Difficult   bool    `json:"difficult" parquet:"difficult"`
}

var csvHeader = []string{"original_s3_uri", "bounding_box", "xmin", "ymin", "xmax", "ymax", "labeled", "labeler_name", "difficult"}

// Rows flattens crops in queue order.
func Rows(crops []models.Crop) []Row {
	rows := make([]Row, 0, len(crops))
	for _, c := range crops {
		rows = append(rows, Row{
			SourceURI:   c.SourceURI,
			BoundingBox: c.BoundingBox.String(),
			XMin:        c.BoundingBox[0],
			YMin:        c.BoundingBox[1],
			XMax:        c.BoundingBox[2],
			YMax:        c.BoundingBox[3],
			Labeled:     c.Labeled,
			LabelerName: c.LabelerName,
			Difficult:   c.Difficult,
		})
	}
	return rows
}

// Write encodes rows to w in format.
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatParquet:
		return writeParquet(w, rows)
	case FormatJSONL:
		return writeJSONL(w, rows)
	case FormatCSV:
		return writeCSV(w, rows)
	default:
		return fmt.Errorf("unsupported export format: %q", format)
	}
}

// WriteFile creates path and writes rows in the format its extension names.
func WriteFile(path string, rows []Row) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(file, format, rows); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	slog.Debug("Wrote export", "path", path, "format", format, "rows", len(rows))
	return nil
}

func writeParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func writeJSONL(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write jsonl row: %w", err)
		}
	}
	return bw.Flush()
}

func writeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.SourceURI,
			row.BoundingBox,
			formatFloat(row.XMin),
			formatFloat(row.YMin),
			formatFloat(row.XMax),
			formatFloat(row.YMax),
			strconv.FormatBool(row.Labeled),
			row.LabelerName,
			strconv.FormatBool(row.Difficult),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadFile loads rows back from a Parquet, JSONL or CSV export.
func ReadFile(path string) ([]Row, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatParquet:
		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		return readParquet(file, info.Size())
	case FormatJSONL:
		return readJSONL(file)
	default:
		return readCSV(file)
	}
}

func readParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	rows := make([]Row, 0, pf.NumRows())
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return rows, nil
}

func readJSONL(r io.Reader) ([]Row, error) {
	var rows []Row
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading export: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([]Row, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("csv line %d: expected %d columns, got %d", i+2, len(csvHeader), len(rec))
		}
		box, err := models.ParseBoundingBox(rec[1])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", i+2, err)
		}
		rows = append(rows, Row{
			SourceURI:   rec[0],
			BoundingBox: rec[1],
			XMin:        box[0],
			YMin:        box[1],
			XMax:        box[2],
			YMax:        box[3],
			Labeled:     rec[6] == "true",
			LabelerName: rec[7],
			Difficult:   rec[8] == "true",
		})
	}
	return rows, nil
}
