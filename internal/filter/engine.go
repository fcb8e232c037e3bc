// Package filter derives sidebar option sets from a dataset and narrows the
// dataset by the user's selection.
//
// Every function here is pure: the input dataset is never modified and the
// returned dataset holds copies of the retained records.
package filter

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/chargemap/internal/domain"

	"golang.org/x/text/cases"
)

// minKeywordLength is the number of characters a token must exceed to enter
// the keyword vocabulary.
const minKeywordLength = 3

// Options holds the choices offered by each sidebar control. A nil slice means
// the backing column is absent and the control is not shown.
type Options struct {
	Districts     []string `json:"districts"`
	Neighborhoods []string `json:"neighborhoods"`
	Operators     []string `json:"operators"`
	SiteTypes     []string `json:"siteTypes"`
	Statuses      []string `json:"statuses"`
	Keywords      []string `json:"keywords"`
}

// For returns the option set bound to a categorical column.
func (o Options) For(column string) []string {
	switch column {
	case domain.ColumnDistrict:
		return o.Districts
	case domain.ColumnNeighborhood:
		return o.Neighborhoods
	case domain.ColumnOperator:
		return o.Operators
	case domain.ColumnSiteType:
		return o.SiteTypes
	case domain.ColumnStatus:
		return o.Statuses
	default:
		return nil
	}
}

// CategoryOptions returns All followed by the sorted distinct non-missing
// values of column, or nil when the column is absent.
func CategoryOptions(ds domain.Dataset, column string) []string {
	if !ds.HasColumn(column) {
		return nil
	}
	return withAll(ds.Distinct(column))
}

// NeighborhoodOptions restricts the neighborhood choices to those occurring in
// rows of district. With district == All every neighborhood is offered.
func NeighborhoodOptions(ds domain.Dataset, district string) []string {
	if !ds.HasColumn(domain.ColumnNeighborhood) {
		return nil
	}
	if !domain.IsActive(district) {
		return withAll(ds.Distinct(domain.ColumnNeighborhood))
	}
	inDistrict := ds.Where(func(r domain.Record) bool {
		value, ok := r.Value(domain.ColumnDistrict)
		return ok && value == district
	})
	return withAll(inDistrict.Distinct(domain.ColumnNeighborhood))
}

// KeywordVocabulary splits each distinct equipment description on whitespace
// and keeps the unique tokens longer than three characters, sorted.
func KeywordVocabulary(ds domain.Dataset) []string {
	if !ds.HasColumn(domain.ColumnEquipment) {
		return nil
	}
	seen := make(map[string]struct{})
	keywords := make([]string, 0)
	for _, description := range ds.Distinct(domain.ColumnEquipment) {
		for _, word := range strings.Fields(description) {
			if utf8.RuneCountInString(word) <= minKeywordLength {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			keywords = append(keywords, word)
		}
	}
	sort.Strings(keywords)
	return keywords
}

// BuildOptions assembles every sidebar option set. The neighborhood options
// depend on the selected district.
func BuildOptions(ds domain.Dataset, sel domain.Selection) Options {
	sel = sel.Normalize()
	return Options{
		Districts:     CategoryOptions(ds, domain.ColumnDistrict),
		Neighborhoods: NeighborhoodOptions(ds, sel.District),
		Operators:     CategoryOptions(ds, domain.ColumnOperator),
		SiteTypes:     CategoryOptions(ds, domain.ColumnSiteType),
		Statuses:      CategoryOptions(ds, domain.ColumnStatus),
		Keywords:      KeywordVocabulary(ds),
	}
}

// Reconcile resets every choice that is not among the offered options to All
// and drops keywords outside the vocabulary, the way a select widget falls
// back to its first entry when its options change. A choice or keyword that
// only differs from an offered value by case is replaced by that value.
func Reconcile(opts Options, sel domain.Selection) domain.Selection {
	sel = sel.Normalize()
	caser := cases.Fold()
	for _, column := range domain.CategoricalColumns {
		choice := sel.Choice(column)
		if !domain.IsActive(choice) {
			continue
		}
		if offered, ok := match(caser, opts.For(column), choice); ok {
			sel = sel.WithChoice(column, offered)
		} else {
			sel = sel.WithChoice(column, domain.All)
		}
	}

	keywords := make([]string, 0, len(sel.Keywords))
	seen := make(map[string]struct{}, len(sel.Keywords))
	for _, keyword := range sel.Keywords {
		offered, ok := match(caser, opts.Keywords, keyword)
		if !ok {
			continue
		}
		if _, dup := seen[offered]; dup {
			continue
		}
		seen[offered] = struct{}{}
		keywords = append(keywords, offered)
	}
	sel.Keywords = keywords
	return sel
}

// Resolve builds the options for ds and reconciles sel against them. The
// district is settled first so the neighborhood choices follow the district
// that will actually be applied.
func Resolve(ds domain.Dataset, sel domain.Selection) (Options, domain.Selection) {
	sel = sel.Normalize()
	if domain.IsActive(sel.District) {
		district, ok := match(cases.Fold(), CategoryOptions(ds, domain.ColumnDistrict), sel.District)
		if !ok {
			district = domain.All
		}
		sel = sel.WithChoice(domain.ColumnDistrict, district)
	}
	opts := BuildOptions(ds, sel)
	return opts, Reconcile(opts, sel)
}

// Drop is a requested choice or keyword that Resolve discarded.
type Drop struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Dropped lists the active parts of requested that did not survive into
// resolved. Keywords are compared case-insensitively since Reconcile may
// replace them with their vocabulary spelling.
func Dropped(requested, resolved domain.Selection) []Drop {
	requested = requested.Normalize()
	caser := cases.Fold()

	var drops []Drop
	for _, column := range domain.CategoricalColumns {
		choice := requested.Choice(column)
		if domain.IsActive(choice) && !domain.IsActive(resolved.Choice(column)) {
			drops = append(drops, Drop{Column: column, Value: choice})
		}
	}
	for _, keyword := range requested.Keywords {
		if _, ok := match(caser, resolved.Keywords, keyword); !ok {
			drops = append(drops, Drop{Column: domain.ColumnEquipment, Value: keyword})
		}
	}
	return drops
}

// Apply narrows ds by the conjunction of the active filters in sel. Each
// predicate only runs when its column exists and its selection is active.
func Apply(ds domain.Dataset, sel domain.Selection) domain.Dataset {
	sel = sel.Normalize()

	type equality struct {
		column string
		value  string
	}
	var equalities []equality
	for _, column := range domain.CategoricalColumns {
		value := sel.Choice(column)
		if domain.IsActive(value) && ds.HasColumn(column) {
			equalities = append(equalities, equality{column: column, value: value})
		}
	}

	caser := cases.Fold()
	var folded []string
	if len(sel.Keywords) > 0 && ds.HasColumn(domain.ColumnEquipment) {
		folded = make([]string, len(sel.Keywords))
		for idx, keyword := range sel.Keywords {
			folded[idx] = caser.String(keyword)
		}
	}

	return ds.Where(func(r domain.Record) bool {
		for _, eq := range equalities {
			value, ok := r.Value(eq.column)
			if !ok || value != eq.value {
				return false
			}
		}
		if len(folded) == 0 {
			return true
		}
		description, ok := r.Value(domain.ColumnEquipment)
		if !ok {
			return false
		}
		description = caser.String(description)
		for _, keyword := range folded {
			if !strings.Contains(description, keyword) {
				return false
			}
		}
		return true
	})
}

func withAll(values []string) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, domain.All)
	return append(out, values...)
}

// match returns the entry of values equal to target, falling back to the first
// entry equal under case folding.
func match(caser cases.Caser, values []string, target string) (string, bool) {
	for _, v := range values {
		if v == target {
			return v, true
		}
	}
	folded := caser.String(target)
	for _, v := range values {
		if caser.String(v) == folded {
			return v, true
		}
	}
	return "", false
}
