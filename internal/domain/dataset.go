package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Well-known columns of the public charging point dataset.
const (
	ColumnDistrict     = "DISTRITO"
	ColumnNeighborhood = "BARRIO"
	ColumnOperator     = "OPERADOR"
	ColumnSiteType     = "EMPLAZAMIENTO"
	ColumnStatus       = "ESTADO"
	ColumnEquipment    = "CARACTERISTICAS_EQUIPO"
	ColumnLongitude    = "LONGITUD"
	ColumnLatitude     = "LATITUD"
	ColumnLocation     = "UBICACION"
)

// Record is a single row keyed by column name. Missing values are stored as
// empty strings or omitted entirely.
type Record map[string]string

// Value returns the trimmed value for column and whether it is present.
func (r Record) Value(column string) (string, bool) {
	raw, ok := r[column]
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	return value, true
}

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	cloned := make(Record, len(r))
	for k, v := range r {
		cloned[k] = v
	}
	return cloned
}

// Dataset is an ordered, schema-less table. It is treated as immutable once
// built: every derivation returns a new Dataset.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// NewDataset builds a dataset from a header and positional rows. Rows shorter
// than the header leave the trailing columns missing.
func NewDataset(columns []string, rows [][]string) Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := make(Record, len(cols))
		for idx, column := range cols {
			if idx < len(row) {
				record[column] = row[idx]
			} else {
				record[column] = ""
			}
		}
		records = append(records, record)
	}
	return Dataset{Columns: cols, Records: records}
}

// EmptyDataset returns a dataset with no columns and no rows.
func EmptyDataset() Dataset {
	return Dataset{Columns: []string{}, Records: []Record{}}
}

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d.Records)
}

// IsEmpty reports whether the dataset has no rows.
func (d Dataset) IsEmpty() bool {
	return len(d.Records) == 0
}

// HasColumn reports whether column is part of the header.
func (d Dataset) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// HasColumns reports whether all columns are present.
func (d Dataset) HasColumns(columns ...string) bool {
	for _, column := range columns {
		if !d.HasColumn(column) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	return d.Where(func(Record) bool { return true })
}

// Where returns a copy holding the records for which keep returns true, in
// their original order.
func (d Dataset) Where(keep func(Record) bool) Dataset {
	cols := make([]string, len(d.Columns))
	copy(cols, d.Columns)

	records := make([]Record, 0, len(d.Records))
	for _, record := range d.Records {
		if keep(record) {
			records = append(records, record.Clone())
		}
	}
	return Dataset{Columns: cols, Records: records}
}

// Distinct returns the distinct non-missing values of column, sorted
// ascending. Values sort numerically when every value is a number. A missing
// column yields nil.
func (d Dataset) Distinct(column string) []string {
	if !d.HasColumn(column) {
		return nil
	}
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, record := range d.Records {
		value, ok := record.Value(column)
		if !ok {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	SortValues(values)
	return values
}

// CountDistinct returns the number of distinct non-missing values of column.
func (d Dataset) CountDistinct(column string) int {
	return len(d.Distinct(column))
}

// Page returns up to limit records starting at offset. A non-positive limit
// returns everything after offset.
func (d Dataset) Page(limit, offset int) []Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(d.Records) {
		return []Record{}
	}
	end := len(d.Records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return d.Records[offset:end]
}

// Rows returns the records as positional rows following Columns.
func (d Dataset) Rows() [][]string {
	rows := make([][]string, 0, len(d.Records))
	for _, record := range d.Records {
		row := make([]string, len(d.Columns))
		for idx, column := range d.Columns {
			row[idx] = record[column]
		}
		rows = append(rows, row)
	}
	return rows
}

// SortValues sorts values in place, numerically when all of them parse as
// numbers and lexicographically otherwise.
func SortValues(values []string) {
	numeric := len(values) > 0
	for _, value := range values {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		sort.Strings(values)
		return
	}
	sort.SliceStable(values, func(i, j int) bool {
		left, _ := strconv.ParseFloat(values[i], 64)
		right, _ := strconv.ParseFloat(values[j], 64)
		return left < right
	})
}
