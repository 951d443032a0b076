// Package sheet converts between uploaded spreadsheet bytes and decoded rows.
//
// The decoder knows nothing about field specs: it turns the first worksheet
// (or a CSV body) into header-keyed rows of raw text. Type coercion is left to
// the validators. The template generator is the inverse direction and is the
// only place that depends on the schema registry.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var (
	// ErrParse is returned when the buffer is not a readable spreadsheet.
	ErrParse = errors.New("invalid spreadsheet")

	// ErrEmptyFile is returned when no data rows follow the header.
	ErrEmptyFile = errors.New("empty file")
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip  = "application/zip"
	mimeXLS  = "application/vnd.ms-excel"
	mimeText = "text/plain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeOptions tunes decoding.
type DecodeOptions struct {
	// SkipRow is consulted for every line after the header; returning true drops
	// the line without consuming a row index.
	SkipRow func(cells []string) bool
}

// Sheet is a decoded upload.
type Sheet struct {
	Format string // "xlsx" or "csv"
	Header []string
	Rows   []schema.Row
}

// Decode reads the first worksheet of an xlsx workbook, or a CSV body, into rows.
// Empty cells decode to null and fully blank lines are skipped.
func Decode(buf []byte, opts DecodeOptions) (*Sheet, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: no content", ErrEmptyFile)
	}

	var (
		records [][]string
		format  string
		err     error
	)

	mime := mimetype.Detect(buf)
	switch {
	case isMime(mime, mimeXLSX) || isMime(mime, mimeZip):
		format = "xlsx"
		records, err = readWorkbook(buf)
	case isMime(mime, mimeText):
		format = "csv"
		records, err = readCSV(buf)
	case isMime(mime, mimeXLS):
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx", ErrParse)
	default:
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrParse, mime.String())
	}
	if err != nil {
		return nil, err
	}

	return buildSheet(format, records, opts)
}

// isMime reports whether m or any of its parents is the given type.
func isMime(m *mimetype.MIME, want string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

func readWorkbook(buf []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no worksheets", ErrParse)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrParse, sheets[0], err)
	}
	return rows, nil
}

func readCSV(buf []byte) ([][]string, error) {
	data, err := decodeText(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return records, nil
}

// decodeText strips a UTF-8 BOM and converts non-UTF-8 input from GB18030,
// the encoding Chinese-locale spreadsheet tools save CSV in.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	return decoded, nil
}

func buildSheet(format string, records [][]string, opts DecodeOptions) (*Sheet, error) {
	headerAt := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, fmt.Errorf("%w: no header row", ErrEmptyFile)
	}

	header, positions := cleanHeader(records[headerAt])

	sheet := &Sheet{Format: format, Header: header}
	index := 0
	for _, rec := range records[headerAt+1:] {
		if isEmptyRow(rec) {
			continue
		}
		if opts.SkipRow != nil && opts.SkipRow(rec) {
			continue
		}

		values := make([]string, len(header))
		for i, pos := range positions {
			if pos < len(rec) {
				values[i] = rec[pos]
			}
		}

		index++
		sheet.Rows = append(sheet.Rows, schema.NewRow(index, header, values))
	}

	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows after header", ErrEmptyFile)
	}
	return sheet, nil
}

// cleanHeader trims header names and drops unnamed columns, returning the kept
// names and their positions in the source record.
func cleanHeader(rec []string) ([]string, []int) {
	names := make([]string, 0, len(rec))
	positions := make([]int, 0, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(strings.TrimPrefix(h, string(utf8BOM)))
		if h == "" {
			continue
		}
		names = append(names, h)
		positions = append(positions, i)
	}
	return names, positions
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
