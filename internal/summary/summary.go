// Package summary computes the headline metrics of a filtered dataset.
package summary

import "github.com/rpattn/chargemap/internal/domain"

// Metrics are the three figures shown above the map.
type Metrics struct {
	Total        int  `json:"total"`
	Operators    int  `json:"operators"`
	SiteTypes    int  `json:"siteTypes"`
	HasOperators bool `json:"hasOperators"`
	HasSiteTypes bool `json:"hasSiteTypes"`
}

// Compute counts rows, distinct operators and distinct site types. Distinct
// counts ignore missing values and stay 0 when the column is absent.
func Compute(ds domain.Dataset) Metrics {
	m := Metrics{
		Total:        ds.Len(),
		HasOperators: ds.HasColumn(domain.ColumnOperator),
		HasSiteTypes: ds.HasColumn(domain.ColumnSiteType),
	}
	if m.HasOperators {
		m.Operators = ds.CountDistinct(domain.ColumnOperator)
	}
	if m.HasSiteTypes {
		m.SiteTypes = ds.CountDistinct(domain.ColumnSiteType)
	}
	return m
}
