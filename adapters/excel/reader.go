// Package excel loads multi-channel recordings from spreadsheet and CSV
// files: a header row of channel names over equal-length numeric columns.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"infodyn/domain/series"
	"infodyn/ports"
)

// DataReader handles reading Excel and CSV files.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
}

// NewDataReader creates a data reader for the given path. The file type
// follows the extension; anything that is not .csv is treated as a
// workbook.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: "Sheet1"}
}

// WithSheet selects a workbook sheet other than Sheet1.
func (r *DataReader) WithSheet(name string) *DataReader {
	r.sheet = name
	return r
}

var _ ports.SeriesSourcePort = (*DataReader)(nil)

// Describe names the source for logs and run records.
func (r *DataReader) Describe() string {
	if r.fileType == "xlsx" {
		return fmt.Sprintf("%s:%s#%s", r.fileType, r.filePath, r.sheet)
	}
	return fmt.Sprintf("%s:%s", r.fileType, r.filePath)
}

// Load reads the full recording. CSV files may separate epochs with blank
// lines; a workbook sheet is a single epoch.
func (r *DataReader) Load(ctx context.Context) (*series.Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.loadCSV()
	default:
		return r.loadWorkbook()
	}
}

func (r *DataReader) loadWorkbook() (*series.Recording, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", r.sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s needs a header row and at least one data row", r.sheet)
	}

	header, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}
	epoch, err := parseEpoch(header, rows[1:], 1)
	if err != nil {
		return nil, err
	}
	return series.NewRecording(header, []*series.Multi{epoch})
}

// loadCSV parses the file block-wise: csv.Reader drops blank lines, so the
// epoch separators are found by splitting the raw text first.
func (r *DataReader) loadCSV() (*series.Recording, error) {
	raw, err := os.ReadFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("read CSV file: %w", err)
	}

	var header []string
	var epochs []*series.Multi
	for _, blk := range splitBlocks(string(raw)) {
		rows, err := csv.NewReader(strings.NewReader(blk.text)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read CSV near line %d: %w", blk.line, err)
		}
		if len(rows) == 0 {
			continue
		}
		if header == nil {
			if header, err = parseHeader(rows[0]); err != nil {
				return nil, err
			}
			rows = rows[1:]
			blk.line++
		}
		if len(rows) == 0 {
			continue
		}
		epoch, err := parseEpoch(header, rows, blk.line-1)
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, epoch)
	}
	if header == nil || len(epochs) == 0 {
		return nil, fmt.Errorf("CSV file %s has no data rows", r.filePath)
	}
	return series.NewRecording(header, epochs)
}

type block struct {
	text string
	line int // 1-based line number of the block's first row
}

// splitBlocks separates the text into blank-line-delimited blocks, keeping
// each block's starting line number for error messages.
func splitBlocks(text string) []block {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var blocks []block
	var cur []string
	start := 0
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, block{text: strings.Join(cur, "\n"), line: start + 1})
			cur = nil
		}
	}
	for i, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			flush()
			continue
		}
		if len(cur) == 0 {
			start = i
		}
		cur = append(cur, ln)
	}
	flush()
	return blocks
}

func parseHeader(cells []string) ([]string, error) {
	names := make([]string, 0, len(cells))
	seen := make(map[string]bool, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate channel name %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("header row has no columns")
	}
	return names, nil
}

func parseEpoch(header []string, rows [][]string, firstLine int) (*series.Multi, error) {
	parsed := make([][]float64, 0, len(rows))
	for i, cells := range rows {
		if len(cells) != len(header) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", firstLine+i+1, len(cells), len(header))
		}
		vals := make([]float64, len(cells))
		for j, cell := range cells {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d channel %q: %q is not numeric", firstLine+i+1, header[j], cell)
			}
			vals[j] = v
		}
		parsed = append(parsed, vals)
	}
	return series.FromRows(parsed)
}
