package summary

import (
	"testing"

	"github.com/rpattn/chargemap/internal/domain"
)

func TestComputeCountsDistinctValues(t *testing.T) {
	ds := domain.NewDataset(
		[]string{domain.ColumnOperator, domain.ColumnSiteType},
		[][]string{
			{"Endesa", "Vía pública"},
			{"Endesa", "Aparcamiento"},
			{"Iberdrola", ""},
			{"", "Vía pública"},
		},
	)
	m := Compute(ds)
	if m.Total != 4 || m.Operators != 2 || m.SiteTypes != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if !m.HasOperators || !m.HasSiteTypes {
		t.Fatalf("expected both columns present: %+v", m)
	}
}

func TestComputeEmptyDataset(t *testing.T) {
	ds := domain.NewDataset([]string{domain.ColumnOperator, domain.ColumnSiteType}, nil)
	m := Compute(ds)
	if m.Total != 0 || m.Operators != 0 || m.SiteTypes != 0 {
		t.Fatalf("expected 0/0/0, got %+v", m)
	}
}

func TestComputeAbsentColumns(t *testing.T) {
	ds := domain.NewDataset([]string{domain.ColumnDistrict}, [][]string{{"CENTRO"}})
	m := Compute(ds)
	if m.Total != 1 || m.HasOperators || m.HasSiteTypes || m.Operators != 0 || m.SiteTypes != 0 {
		t.Fatalf("unexpected metrics without columns: %+v", m)
	}
}
