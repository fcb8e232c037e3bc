package geomap

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON geometry; only points are produced.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

// GeoJSON converts the plotted points into a FeatureCollection.
func GeoJSON(m Map) FeatureCollection {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(m.Points)),
	}
	for _, p := range m.Points {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{p.Longitude, p.Latitude},
			},
			Properties: map[string]any{
				"location":    p.Location,
				"description": p.Description,
				"operator":    p.Operator,
				"siteType":    p.SiteType,
				"status":      p.Status,
				"tooltip":     p.Tooltip,
			},
		})
	}
	return fc
}
