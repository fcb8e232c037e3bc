package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/repository"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// DefaultDelimiter separates fields in the published charging point files.
const DefaultDelimiter = ';'

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when the payload has no bytes or no header row.
	ErrEmptyFile = errors.New("no columns to parse from file")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// LoadError is the single recoverable failure of the loader. Callers show it
// to the user and continue with an empty dataset.
type LoadError struct {
	Source   domain.LoadSource
	FileName string
	Reason   string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Result is either a dataset or a load error.
type Result struct {
	Dataset  domain.Dataset
	Source   domain.LoadSource
	FileName string
	Err      *LoadError
}

// OK reports whether the load succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// DatasetOrEmpty returns the loaded dataset, or an empty one on failure.
func (r Result) DatasetOrEmpty() domain.Dataset {
	if r.Err != nil {
		return domain.EmptyDataset()
	}
	return r.Dataset
}

// Loader turns delimited text and spreadsheets into datasets.
type Loader struct {
	delimiter rune
	logRepo   repository.LoadLogRepository
}

// NewLoader creates a loader. A zero delimiter falls back to ';'. logRepo may
// be nil.
func NewLoader(delimiter rune, logRepo repository.LoadLogRepository) *Loader {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &Loader{delimiter: delimiter, logRepo: logRepo}
}

// Delimiter returns the field separator used for delimited text.
func (l *Loader) Delimiter() rune {
	return l.delimiter
}

// LoadFile reads the delimited file at path. The extension is ignored.
func (l *Loader) LoadFile(ctx context.Context, path string) Result {
	result := Result{Source: domain.LoadSourceFile, FileName: path}

	payload, err := os.ReadFile(path)
	if err != nil {
		result.Err = &LoadError{Source: result.Source, FileName: path, Reason: "failed to read file", Err: err}
		l.record(ctx, result)
		return result
	}

	table, err := parseDelimited(payload, l.delimiter)
	if err != nil {
		result.Err = &LoadError{Source: result.Source, FileName: path, Reason: "failed to parse file", Err: err}
		l.record(ctx, result)
		return result
	}

	result.Dataset = table.dataset()
	l.record(ctx, result)
	return result
}

// LoadUpload reads an uploaded file, choosing the parser by extension.
func (l *Loader) LoadUpload(ctx context.Context, fileName string, data io.Reader) Result {
	result := Result{Source: domain.LoadSourceUpload, FileName: fileName}

	if data == nil {
		result.Err = &LoadError{Source: result.Source, FileName: fileName, Reason: "data reader is required"}
		l.record(ctx, result)
		return result
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		result.Err = &LoadError{Source: result.Source, FileName: fileName, Reason: "failed to read upload", Err: err}
		l.record(ctx, result)
		return result
	}

	table, err := parseTable(fileName, payload, l.delimiter)
	if err != nil {
		result.Err = &LoadError{Source: result.Source, FileName: fileName, Reason: "failed to parse upload", Err: err}
		l.record(ctx, result)
		return result
	}

	result.Dataset = table.dataset()
	l.record(ctx, result)
	return result
}

func (l *Loader) record(ctx context.Context, result Result) {
	var loadErr error
	if result.Err != nil {
		loadErr = result.Err
		log.Printf("[LOAD] %s %s failed: %v", result.Source, result.FileName, result.Err)
	} else {
		log.Printf("[LOAD] %s %s: %d rows, %d columns", result.Source, result.FileName, result.Dataset.Len(), len(result.Dataset.Columns))
	}

	if l.logRepo == nil {
		return
	}
	entry := domain.NewLoadLogEntry(
		result.Source,
		filepath.Base(result.FileName),
		result.Dataset.Len(),
		len(result.Dataset.Columns),
		loadErr,
	)
	if err := l.logRepo.Record(ctx, entry); err != nil {
		log.Printf("[LOAD] failed to record load log: %v", err)
	}
}

type tableData struct {
	headers []string
	rows    [][]string
}

func (t tableData) dataset() domain.Dataset {
	return domain.NewDataset(t.headers, t.rows)
}

func parseTable(fileName string, payload []byte, delimiter rune) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseDelimited(payload, delimiter)
	case ".xlsx", ".xls":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parseDelimited(payload []byte, delimiter rune) (tableData, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return tableData{}, ErrEmptyFile
	}

	payload = bytes.TrimPrefix(payload, byteOrderMark)
	if !utf8.Valid(payload) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(payload)
		if err != nil {
			return tableData{}, fmt.Errorf("failed to decode file: %w", err)
		}
		payload = decoded
	}

	csvReader := csv.NewReader(bufio.NewReader(bytes.NewReader(payload)))
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from spreadsheet: %w", err)
	}

	return normalizeTable(rows)
}

func normalizeTable(records [][]string) (tableData, error) {
	var headerRow []string
	var dataRows [][]string
	headerLine := 0

	for idx, row := range records {
		if isBlankRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			headerLine = idx + 1
			continue
		}
		if len(row) > len(headerRow) && !isBlankRow(row[len(headerRow):]) {
			return tableData{}, fmt.Errorf("error tokenizing data: expected %d fields after line %d, saw %d",
				len(headerRow), headerLine, len(row))
		}
		dataRows = append(dataRows, padRow(row, len(headerRow)))
	}

	if headerRow == nil {
		return tableData{}, ErrEmptyFile
	}

	return tableData{
		headers: sanitizeHeaders(headerRow),
		rows:    dataRows,
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeHeaders trims header cells, names blank ones "Unnamed: N" and
// suffixes repeated names with ".N".
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(value, "\uFEFF"))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", idx)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s.%d", base, count)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
