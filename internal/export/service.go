package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rpattn/chargemap/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Format is a download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Cargadores"

// ErrUnknownFormat is returned for formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a file extension or format name to a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Service writes datasets in downloadable formats.
type Service struct {
	delimiter rune
}

// NewService creates a service. CSV output uses delimiter, ';' when zero.
func NewService(delimiter rune) *Service {
	if delimiter == 0 {
		delimiter = ';'
	}
	return &Service{delimiter: delimiter}
}

// Write encodes ds in format to w and returns the number of bytes written.
func (s *Service) Write(w io.Writer, ds domain.Dataset, format Format) (int64, error) {
	switch format {
	case FormatCSV:
		return s.WriteCSV(w, ds)
	case FormatXLSX:
		return s.WriteXLSX(w, ds)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteCSV writes the header followed by every record.
func (s *Service) WriteCSV(w io.Writer, ds domain.Dataset) (int64, error) {
	buffered := bufio.NewWriter(w)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)
	csvWriter.Comma = s.delimiter

	if err := csvWriter.Write(ds.Columns); err != nil {
		return counter.count, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range ds.Rows() {
		if err := csvWriter.Write(row); err != nil {
			return counter.count, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return counter.count, fmt.Errorf("failed to flush csv writer: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return counter.count, fmt.Errorf("failed to flush output: %w", err)
	}
	return counter.count, nil
}

// WriteXLSX writes ds to a single worksheet.
func (s *Service) WriteXLSX(w io.Writer, ds domain.Dataset) (int64, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return 0, fmt.Errorf("failed to name worksheet: %w", err)
	}

	if err := setRow(f, 1, ds.Columns); err != nil {
		return 0, err
	}
	for idx, row := range ds.Rows() {
		if err := setRow(f, idx+2, row); err != nil {
			return 0, err
		}
	}

	n, err := f.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write workbook: %w", err)
	}
	return n, nil
}

func setRow(f *excelize.File, rowNumber int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNumber, err)
	}
	return nil
}

// FileName builds the download name for base in format.
func FileName(base string, format Format) string {
	return fmt.Sprintf("%s.%s", sanitizeFileComponent(base), format)
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "export"
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
