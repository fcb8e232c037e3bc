package dashboard

import (
	"net/url"

	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/filter"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/rpattn/chargemap/internal/ingestion"
	"github.com/rpattn/chargemap/internal/summary"
)

// Query parameters carrying the selection.
const (
	ParamDistrict     = "distrito"
	ParamNeighborhood = "barrio"
	ParamOperator     = "operador"
	ParamSiteType     = "emplazamiento"
	ParamStatus       = "estado"
	ParamKeyword      = "keyword"
)

var columnParams = map[string]string{
	domain.ColumnDistrict:     ParamDistrict,
	domain.ColumnNeighborhood: ParamNeighborhood,
	domain.ColumnOperator:     ParamOperator,
	domain.ColumnSiteType:     ParamSiteType,
	domain.ColumnStatus:       ParamStatus,
}

// ParseSelection reads a selection from query values. Missing parameters mean All.
func ParseSelection(values url.Values) domain.Selection {
	sel := domain.Selection{
		District:     values.Get(ParamDistrict),
		Neighborhood: values.Get(ParamNeighborhood),
		Operator:     values.Get(ParamOperator),
		SiteType:     values.Get(ParamSiteType),
		Status:       values.Get(ParamStatus),
		Keywords:     values[ParamKeyword],
	}
	return sel.Normalize()
}

// ParamFor returns the query parameter carrying column, or "" when the
// column is not filterable.
func ParamFor(column string) string {
	if column == domain.ColumnEquipment {
		return ParamKeyword
	}
	return columnParams[column]
}

// EncodeSelection renders the active parts of sel as query values.
func EncodeSelection(sel domain.Selection) url.Values {
	values := url.Values{}
	for _, column := range domain.CategoricalColumns {
		if choice := sel.Choice(column); domain.IsActive(choice) {
			values.Set(columnParams[column], choice)
		}
	}
	for _, keyword := range sel.Keywords {
		values.Add(ParamKeyword, keyword)
	}
	return values
}

// View is everything one render pass derives from the loaded dataset.
type View struct {
	Result    ingestion.Result
	Dataset   domain.Dataset
	Selection domain.Selection
	Dropped   []filter.Drop
	Options   filter.Options
	Filtered  domain.Dataset
	Metrics   summary.Metrics
	Map       geomap.Map
	MapErr    error
}

// HasData reports whether filters and the map are shown.
func (v View) HasData() bool {
	return !v.Dataset.IsEmpty()
}

// BuildView runs load result -> options -> filter -> metrics -> map.
func BuildView(result ingestion.Result, sel domain.Selection, mapOpts geomap.Options) View {
	ds := result.DatasetOrEmpty()
	view := View{
		Result:    result,
		Dataset:   ds,
		Selection: domain.NewSelection(),
		Filtered:  ds,
	}

	if ds.IsEmpty() {
		view.Metrics = summary.Compute(ds)
		view.MapErr = geomap.ErrNoRows
		return view
	}

	view.Options, view.Selection = filter.Resolve(ds, sel)
	view.Dropped = filter.Dropped(sel, view.Selection)
	view.Filtered = filter.Apply(ds, view.Selection)
	view.Metrics = summary.Compute(view.Filtered)
	view.Map, view.MapErr = geomap.Build(view.Filtered, mapOpts)
	return view
}
