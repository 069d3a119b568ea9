// Package tabular turns raw CSV text or spreadsheet bytes into ordered
// header+row records ready for semantic interpretation.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// RawRow is one parsed line of an uploaded file keyed by header label.
// Column order is carried by Table.Headers.
type RawRow map[string]string

// Table is the output of parsing: the detected header row plus all data
// rows below it. SourceRows counts data rows before the noise filter ran,
// so callers can tell "empty file" apart from "every row was noise".
type Table struct {
	Headers    []string
	Rows       []RawRow
	SourceRows int
}

// headerKeywords score spreadsheet rows as header-row candidates. Many bank
// spreadsheet exports prepend report titles and metadata before the real
// header row, so the row containing these labels is almost always it.
var headerKeywords = []string{
	"date", "amount", "description", "merchant", "debit", "credit", "transaction",
}

// maxHeaderScan bounds the search for the spreadsheet header row.
const maxHeaderScan = 10

// Parse dispatches on content shape: spreadsheet bytes are decoded via the
// first worksheet, anything else is treated as delimited text.
func Parse(content []byte, spreadsheet bool) (*Table, error) {
	if spreadsheet {
		return ParseSpreadsheet(content)
	}
	return ParseText(string(content))
}

// ParseText parses delimited text with a header-aware CSV reader. Quoted
// fields may contain delimiters and newlines. Rows with fewer than 2
// non-empty cells are metadata/footer noise and are dropped.
func ParseText(content string) (*Table, error) {
	content = strings.TrimPrefix(content, "\ufeff")

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content: %w", err)
	}
	if len(records) == 0 {
		return &Table{Headers: []string{}, Rows: []RawRow{}}, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := buildRows(headers, records[1:])
	return &Table{Headers: headers, Rows: rows, SourceRows: len(records) - 1}, nil
}

// ParseSpreadsheet decodes the first sheet of a workbook. The header row is
// located by scoring the first rows (see scoreHeaderRow); everything below
// it becomes data rows under those headers. Date-typed cells are rewritten
// to YYYY-MM-DD; all other cells are stringified and trimmed.
func ParseSpreadsheet(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet contains no sheets")
	}

	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(grid) == 0 {
		return &Table{Headers: []string{}, Rows: []RawRow{}}, nil
	}

	headerIdx := findHeaderRow(grid)

	headers := make([]string, len(grid[headerIdx]))
	for i, h := range grid[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	var records [][]string
	for _, row := range grid[headerIdx+1:] {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = normalizeCell(cell)
		}
		records = append(records, cells)
	}

	rows := buildRows(headers, records)
	return &Table{Headers: headers, Rows: rows, SourceRows: len(records)}, nil
}

// buildRows maps records onto headers and applies the >=2-non-empty-cell
// filter shared by both input modes.
func buildRows(headers []string, records [][]string) []RawRow {
	rows := make([]RawRow, 0, len(records))
	for _, record := range records {
		nonEmpty := 0
		row := make(RawRow, len(headers))
		for i, h := range headers {
			var v string
			if i < len(record) {
				v = strings.TrimSpace(record[i])
			}
			if h == "" {
				continue
			}
			row[h] = v
			if v != "" {
				nonEmpty++
			}
		}
		if nonEmpty < 2 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// findHeaderRow scans at most the first maxHeaderScan rows and scores each
// as a header-row candidate: one point per non-empty cell plus three per
// cell containing a header keyword. A row qualifies only with >=3 non-empty
// cells; the highest-scoring qualifying row wins, first seen on ties.
// Defaults to row 0 when nothing qualifies.
func findHeaderRow(grid [][]string) int {
	best := -1
	bestScore := 0

	limit := len(grid)
	if limit > maxHeaderScan {
		limit = maxHeaderScan
	}

	for i := 0; i < limit; i++ {
		score := scoreHeaderRow(grid[i])
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return 0
	}
	return best
}

func scoreHeaderRow(row []string) int {
	nonEmpty := 0
	keywordHits := 0
	for _, cell := range row {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "" {
			continue
		}
		nonEmpty++
		for _, kw := range headerKeywords {
			if strings.Contains(c, kw) {
				keywordHits++
				break
			}
		}
	}
	if nonEmpty < 3 {
		return 0
	}
	return nonEmpty + 3*keywordHits
}

// excelDateLayouts are the display formats excelize produces for date-typed
// cells under the common built-in number formats.
var excelDateLayouts = []string{
	"1/2/06",
	"01-02-06",
	"1-2-06",
	"1/2/06 15:04",
	"1/2/2006",
	"2006-01-02",
}

// normalizeCell trims a spreadsheet cell and rewrites date-typed values to
// ISO form.
func normalizeCell(cell string) string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return s
	}
	for _, layout := range excelDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
