// Package geomap projects filtered charging points onto a scatter layer
// centred on their centroid.
package geomap

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/rpattn/chargemap/internal/domain"
)

var (
	// ErrNoRows means the filtered dataset is empty; the page shows a warning.
	ErrNoRows = errors.New("no charging points match the selected filters")

	// ErrMissingColumns means the coordinate columns are absent.
	ErrMissingColumns = errors.New("missing columns required for the map")

	// ErrNoCoordinates means no row carries a parseable coordinate pair.
	ErrNoCoordinates = errors.New("no rows with valid coordinates")
)

// RequiredColumns must be present for the map to render.
var RequiredColumns = []string{domain.ColumnLongitude, domain.ColumnLatitude}

// DefaultZoom is the initial zoom level of the view.
const DefaultZoom = 10

// Color is an RGB triple.
type Color [3]uint8

// CSS renders the color as an rgb() expression.
func (c Color) CSS() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c[0], c[1], c[2])
}

// LayerStyle describes how points are drawn. Radius is in meters and is
// multiplied by RadiusScale, then clamped to the pixel bounds.
type LayerStyle struct {
	Radius          float64 `json:"radius"`
	RadiusScale     float64 `json:"radiusScale"`
	RadiusMinPixels float64 `json:"radiusMinPixels"`
	RadiusMaxPixels float64 `json:"radiusMaxPixels"`
	FillColor       Color   `json:"fillColor"`
	Pickable        bool    `json:"pickable"`
	AutoHighlight   bool    `json:"autoHighlight"`
}

// DefaultLayerStyle is a red dot of 30 m scaled by 4, between 2 and 100 px.
func DefaultLayerStyle() LayerStyle {
	return LayerStyle{
		Radius:          30,
		RadiusScale:     4,
		RadiusMinPixels: 2,
		RadiusMaxPixels: 100,
		FillColor:       Color{255, 0, 0},
		Pickable:        true,
		AutoHighlight:   true,
	}
}

// Options configure Build.
type Options struct {
	Style LayerStyle
	Zoom  float64
}

// DefaultOptions returns the default style at DefaultZoom.
func DefaultOptions() Options {
	return Options{Style: DefaultLayerStyle(), Zoom: DefaultZoom}
}

// ViewState is the initial camera of the map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
}

// Point is one plotted charging point.
type Point struct {
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Operator    string  `json:"operator"`
	SiteType    string  `json:"siteType"`
	Status      string  `json:"status"`
	Tooltip     string  `json:"tooltip"`
}

// Map is everything the client needs to draw the layer.
type Map struct {
	View    ViewState  `json:"view"`
	Layer   LayerStyle `json:"layer"`
	Points  []Point    `json:"points"`
	Skipped int        `json:"skipped"`
}

// Build plots one point per row with valid coordinates and centres the view on
// their mean position. Rows without usable coordinates are counted in Skipped.
func Build(ds domain.Dataset, opts Options) (Map, error) {
	if ds.IsEmpty() {
		return Map{}, ErrNoRows
	}
	if !ds.HasColumns(RequiredColumns...) {
		return Map{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(RequiredColumns, ", "))
	}

	m := Map{
		Layer:  opts.Style,
		Points: make([]Point, 0, ds.Len()),
	}

	var sumLat, sumLon float64
	for _, record := range ds.Records {
		lon, okLon := parseCoordinate(record, domain.ColumnLongitude, 180)
		lat, okLat := parseCoordinate(record, domain.ColumnLatitude, 90)
		if !okLon || !okLat {
			m.Skipped++
			continue
		}

		point := Point{
			Longitude:   lon,
			Latitude:    lat,
			Location:    record[domain.ColumnLocation],
			Description: record[domain.ColumnEquipment],
			Operator:    record[domain.ColumnOperator],
			SiteType:    record[domain.ColumnSiteType],
			Status:      record[domain.ColumnStatus],
		}
		point.Tooltip = Tooltip(point)
		m.Points = append(m.Points, point)

		sumLat += lat
		sumLon += lon
	}

	if len(m.Points) == 0 {
		return Map{}, ErrNoCoordinates
	}

	n := float64(len(m.Points))
	m.View = ViewState{
		Latitude:  sumLat / n,
		Longitude: sumLon / n,
		Zoom:      opts.Zoom,
		Pitch:     0,
	}
	return m, nil
}

// Tooltip renders the hover text of a point as escaped HTML.
func Tooltip(p Point) string {
	var b strings.Builder
	writeTooltipLine(&b, "Ubicación", p.Location)
	b.WriteString(" <br> ")
	writeTooltipLine(&b, "Características", p.Description)
	b.WriteString(" <br> ")
	writeTooltipLine(&b, "Operador", p.Operator)
	b.WriteString(" <br> ")
	writeTooltipLine(&b, "Emplazamiento", p.SiteType)
	b.WriteString(" <br> ")
	writeTooltipLine(&b, "Estado", p.Status)
	return b.String()
}

func writeTooltipLine(b *strings.Builder, label, value string) {
	b.WriteString("<b>")
	b.WriteString(label)
	b.WriteString(":</b> ")
	b.WriteString(template.HTMLEscapeString(strings.TrimSpace(value)))
}

// ParseCoordinate reads a decimal degree value. A comma is accepted as the
// decimal separator when the value has no dot.
func ParseCoordinate(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func parseCoordinate(r domain.Record, column string, limit float64) (float64, bool) {
	raw, ok := r.Value(column)
	if !ok {
		return 0, false
	}
	value, ok := ParseCoordinate(raw)
	if !ok || math.Abs(value) > limit {
		return 0, false
	}
	return value, true
}
