package ingestion

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rpattn/chargemap/internal/domain"

	"github.com/xuri/excelize/v2"
)

const sampleCSV = `DISTRITO;BARRIO;OPERADOR;EMPLAZAMIENTO;ESTADO;CARACTERISTICAS_EQUIPO;LONGITUD;LATITUD;UBICACION
CENTRO;SOL;Iberdrola;Vía pública;Operativo;Carga rapida acceso publico;-3.70;40.41;Calle Mayor 1
RETIRO;IBIZA;Endesa;Aparcamiento;Operativo;Carga lenta acceso publico;-3.67;40.42;Calle Ibiza 2
`

func TestLoadFileParsesSemicolonCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	logRepo := &stubLogRepo{}

	result := NewLoader(0, logRepo).LoadFile(context.Background(), path)
	if !result.OK() {
		t.Fatalf("load returned error: %v", result.Err)
	}

	ds := result.Dataset
	if ds.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", ds.Len())
	}
	if len(ds.Columns) != 9 || ds.Columns[0] != domain.ColumnDistrict || ds.Columns[8] != domain.ColumnLocation {
		t.Fatalf("unexpected columns: %v", ds.Columns)
	}
	if got, _ := ds.Records[1].Value(domain.ColumnOperator); got != "Endesa" {
		t.Fatalf("expected Endesa, got %q", got)
	}
	if result.Source != domain.LoadSourceFile {
		t.Fatalf("expected file source, got %s", result.Source)
	}

	if len(logRepo.entries) != 1 {
		t.Fatalf("expected one load log entry, got %d", len(logRepo.entries))
	}
	entry := logRepo.entries[0]
	if entry.Failed() || entry.Rows != 2 || entry.Columns != 9 || entry.FileName != "red.csv" {
		t.Fatalf("unexpected load log entry: %+v", entry)
	}
}

func TestLoadFileMissingReturnsLoadError(t *testing.T) {
	logRepo := &stubLogRepo{}
	result := NewLoader(';', logRepo).LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))

	if result.OK() {
		t.Fatalf("expected failure for missing file")
	}
	if !errors.Is(result.Err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", result.Err)
	}
	if !result.DatasetOrEmpty().IsEmpty() || len(result.DatasetOrEmpty().Columns) != 0 {
		t.Fatalf("expected empty dataset on failure")
	}
	if len(logRepo.entries) != 1 || !logRepo.entries[0].Failed() {
		t.Fatalf("expected failed load log entry, got %+v", logRepo.entries)
	}
}

func TestLoadFileIgnoresExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.txt")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	result := NewLoader(';', nil).LoadFile(context.Background(), path)
	if !result.OK() || result.Dataset.Len() != 2 {
		t.Fatalf("expected delimited parse regardless of extension, got %+v", result.Err)
	}
}

func TestLoadUploadCSVStripsBOMAndPadsShortRows(t *testing.T) {
	data := "\xEF\xBB\xBFDISTRITO;BARRIO;OPERADOR\nCENTRO;SOL\n\n;;\nRETIRO;IBIZA;Endesa\n"

	result := NewLoader(';', nil).LoadUpload(context.Background(), "upload.CSV", strings.NewReader(data))
	if !result.OK() {
		t.Fatalf("load returned error: %v", result.Err)
	}
	ds := result.Dataset
	if ds.Columns[0] != domain.ColumnDistrict {
		t.Fatalf("expected BOM stripped header, got %q", ds.Columns[0])
	}
	if ds.Len() != 2 {
		t.Fatalf("expected blank rows dropped, got %d rows", ds.Len())
	}
	if _, ok := ds.Records[0].Value(domain.ColumnOperator); ok {
		t.Fatalf("expected missing operator on short row")
	}
	if result.Source != domain.LoadSourceUpload || result.FileName != "upload.CSV" {
		t.Fatalf("unexpected result metadata: %s %s", result.Source, result.FileName)
	}
}

func TestLoadUploadHonoursQuotedFields(t *testing.T) {
	data := "OPERADOR;CARACTERISTICAS_EQUIPO\nIberdrola;\"Carga; rapida\"\n"

	result := NewLoader(';', nil).LoadUpload(context.Background(), "quoted.csv", strings.NewReader(data))
	if !result.OK() {
		t.Fatalf("load returned error: %v", result.Err)
	}
	if got, _ := result.Dataset.Records[0].Value(domain.ColumnEquipment); got != "Carga; rapida" {
		t.Fatalf("expected quoted delimiter preserved, got %q", got)
	}
}

func TestLoadUploadDecodesWindows1252(t *testing.T) {
	// "Vía pública" with í=0xED and ú=0xFA
	data := []byte("EMPLAZAMIENTO\nV\xEDa p\xFAblica\n")

	result := NewLoader(';', nil).LoadUpload(context.Background(), "latin.csv", bytes.NewReader(data))
	if !result.OK() {
		t.Fatalf("load returned error: %v", result.Err)
	}
	if got, _ := result.Dataset.Records[0].Value(domain.ColumnSiteType); got != "Vía pública" {
		t.Fatalf("expected decoded value, got %q", got)
	}
}

func TestLoadUploadMalformedRowFails(t *testing.T) {
	data := "DISTRITO;BARRIO\nCENTRO;SOL;EXTRA;MAS\n"

	result := NewLoader(';', nil).LoadUpload(context.Background(), "bad.csv", strings.NewReader(data))
	if result.OK() {
		t.Fatalf("expected malformed row to fail")
	}
	if !strings.Contains(result.Err.Error(), "expected 2 fields") {
		t.Fatalf("unexpected error message: %v", result.Err)
	}
	if !result.DatasetOrEmpty().IsEmpty() {
		t.Fatalf("expected empty dataset on failure")
	}
}

func TestLoadUploadEmptyFileFails(t *testing.T) {
	result := NewLoader(';', nil).LoadUpload(context.Background(), "empty.csv", strings.NewReader("  \n"))
	if result.OK() {
		t.Fatalf("expected empty file to fail")
	}
	if !errors.Is(result.Err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", result.Err)
	}
}

func TestLoadUploadUnsupportedExtension(t *testing.T) {
	result := NewLoader(';', nil).LoadUpload(context.Background(), "notes.json", strings.NewReader("{}"))
	if result.OK() {
		t.Fatalf("expected unsupported format to fail")
	}
	if !errors.Is(result.Err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", result.Err)
	}
	var loadErr *LoadError
	if !errors.As(error(result.Err), &loadErr) || loadErr.FileName != "notes.json" {
		t.Fatalf("expected LoadError for notes.json, got %v", result.Err)
	}
}

func TestLoadUploadNilReader(t *testing.T) {
	result := NewLoader(';', nil).LoadUpload(context.Background(), "x.csv", nil)
	if result.OK() {
		t.Fatalf("expected nil reader to fail")
	}
}

func TestLoadUploadXLSXReadsFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"DISTRITO", "OPERADOR", "LATITUD"},
		{"CENTRO", "Iberdrola", 40.41},
		{"RETIRO", "Endesa", 40.42},
	}
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	result := NewLoader(';', nil).LoadUpload(context.Background(), "red.xlsx", &buf)
	if !result.OK() {
		t.Fatalf("load returned error: %v", result.Err)
	}
	ds := result.Dataset
	if ds.Len() != 2 || len(ds.Columns) != 3 {
		t.Fatalf("unexpected shape: %d rows, %v", ds.Len(), ds.Columns)
	}
	if got, _ := ds.Records[1].Value(domain.ColumnOperator); got != "Endesa" {
		t.Fatalf("expected Endesa, got %q", got)
	}
	if got, _ := ds.Records[0].Value(domain.ColumnLatitude); got != "40.41" {
		t.Fatalf("expected 40.41, got %q", got)
	}
}

func TestLoadUploadInvalidSpreadsheetFails(t *testing.T) {
	result := NewLoader(';', nil).LoadUpload(context.Background(), "legacy.xls", strings.NewReader("not a workbook"))
	if result.OK() {
		t.Fatalf("expected invalid workbook to fail")
	}
}

func TestSanitizeHeaders(t *testing.T) {
	got := sanitizeHeaders([]string{" DISTRITO ", "", "BARRIO", "BARRIO"})
	want := []string{"DISTRITO", "Unnamed: 1", "BARRIO", "BARRIO.1"}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("header %d: expected %q, got %q", idx, want[idx], got[idx])
		}
	}
}

func TestLoadErrorFormatting(t *testing.T) {
	err := &LoadError{Reason: "failed to parse upload", Err: ErrEmptyFile}
	if err.Error() != "failed to parse upload: no columns to parse from file" {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
	if (&LoadError{Reason: "data reader is required"}).Error() != "data reader is required" {
		t.Fatalf("expected bare reason")
	}
}

type stubLogRepo struct {
	mu      sync.Mutex
	entries []domain.LoadLogEntry
}

func (s *stubLogRepo) Record(ctx context.Context, entry domain.LoadLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogRepo) List(ctx context.Context, limit int, offset int) ([]domain.LoadLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LoadLogEntry{}, s.entries...), nil
}
