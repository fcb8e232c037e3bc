package domain

import "strings"

// All is the sentinel selection that disables a categorical filter.
const All = "all"

// Selection captures the sidebar state for one render pass.
type Selection struct {
	District     string   `json:"district"`
	Neighborhood string   `json:"neighborhood"`
	Operator     string   `json:"operator"`
	SiteType     string   `json:"siteType"`
	Status       string   `json:"status"`
	Keywords     []string `json:"keywords"`
}

// NewSelection returns a selection with every filter disabled.
func NewSelection() Selection {
	return Selection{
		District:     All,
		Neighborhood: All,
		Operator:     All,
		SiteType:     All,
		Status:       All,
		Keywords:     []string{},
	}
}

// Normalize maps blank values to All and drops blank or duplicate keywords.
func (s Selection) Normalize() Selection {
	out := Selection{
		District:     normalizeChoice(s.District),
		Neighborhood: normalizeChoice(s.Neighborhood),
		Operator:     normalizeChoice(s.Operator),
		SiteType:     normalizeChoice(s.SiteType),
		Status:       normalizeChoice(s.Status),
		Keywords:     make([]string, 0, len(s.Keywords)),
	}
	seen := make(map[string]struct{}, len(s.Keywords))
	for _, keyword := range s.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		out.Keywords = append(out.Keywords, keyword)
	}
	return out
}

// Choice returns the categorical selection bound to column, or All when the
// column has no categorical filter.
func (s Selection) Choice(column string) string {
	switch column {
	case ColumnDistrict:
		return s.District
	case ColumnNeighborhood:
		return s.Neighborhood
	case ColumnOperator:
		return s.Operator
	case ColumnSiteType:
		return s.SiteType
	case ColumnStatus:
		return s.Status
	default:
		return All
	}
}

// WithChoice returns a copy with the categorical selection for column replaced.
func (s Selection) WithChoice(column, value string) Selection {
	out := s
	out.Keywords = append([]string{}, s.Keywords...)
	switch column {
	case ColumnDistrict:
		out.District = value
	case ColumnNeighborhood:
		out.Neighborhood = value
	case ColumnOperator:
		out.Operator = value
	case ColumnSiteType:
		out.SiteType = value
	case ColumnStatus:
		out.Status = value
	}
	return out
}

// IsAll reports whether no filter is active.
func (s Selection) IsAll() bool {
	for _, column := range CategoricalColumns {
		if IsActive(s.Choice(column)) {
			return false
		}
	}
	return len(s.Keywords) == 0
}

// IsActive reports whether value selects something other than All.
func IsActive(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != All
}

// CategoricalColumns lists the single-choice filters in application order.
var CategoricalColumns = []string{
	ColumnDistrict,
	ColumnNeighborhood,
	ColumnOperator,
	ColumnSiteType,
	ColumnStatus,
}

func normalizeChoice(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return All
	}
	return value
}
