package core

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultZoom is the fixed initial zoom level. The view is never fitted to
// the data's bounds.
const DefaultZoom = 10

// ManualLabel marks markers entered by hand.
const ManualLabel = "Custom Coordinates"

// MapSurface is the composed map for one pass of the pipeline: the initial
// viewport and the markers in insertion order. It is rebuilt from scratch on
// every request and owned by the caller that built it.
type MapSurface struct {
	Center  LatLng   `json:"center"`
	Zoom    int      `json:"zoom"`
	Markers []Marker `json:"markers"`
}

// Centroid returns the arithmetic mean of the points' coordinates.
// Values are summed in sorted order so the result does not depend on row
// order. ok is false when points is empty.
func Centroid(points []SamplePoint) (center LatLng, ok bool) {
	if len(points) == 0 {
		return LatLng{}, false
	}
	lats := make([]float64, len(points))
	lngs := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Latitude
		lngs[i] = p.Longitude
	}
	return LatLng{Lat: mean(lats), Lng: mean(lngs)}, true
}

func mean(vs []float64) float64 {
	sort.Float64s(vs)
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// NewMapSurface creates a surface centered on the centroid of points.
// Returns ErrNoValidRows if there are no points.
func NewMapSurface(points []SamplePoint) (*MapSurface, error) {
	center, ok := Centroid(points)
	if !ok {
		return nil, ErrNoValidRows
	}
	return &MapSurface{Center: center, Zoom: DefaultZoom}, nil
}

// AddSample adds a classified pin for a primary row.
func (s *MapSurface) AddSample(p SamplePoint, cls Classifier) Marker {
	code := p.Code.Raw
	if code == "" {
		code = "N/A"
	}
	m := Marker{
		Kind:      KindSample,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Color:     cls.Color(p.Code),
		Icon:      IconInfo,
		Popup: []string{
			"Coordinates: (" + p.RawLatitude + ", " + p.RawLongitude + ")",
			"Code: " + code,
		},
	}
	s.Markers = append(s.Markers, m)
	return m
}

// AddAuxiliary adds a filled black circle for a secondary row.
func (s *MapSurface) AddAuxiliary(p AuxiliaryPoint) Marker {
	m := Marker{
		Kind:      KindAuxiliary,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Color:     ColorBlack,
		Radius:    AuxiliaryRadius,
		Filled:    true,
		Popup: []string{
			"sl.no: " + p.SerialNumber,
			"Coordinates: (" + p.RawLatitude + ", " + p.RawLongitude + ")",
		},
	}
	s.Markers = append(s.Markers, m)
	return m
}

// AddManual adds a purple star pin for a hand-entered point. Identical
// points are not merged.
func (s *MapSurface) AddManual(p ManualPoint) Marker {
	m := Marker{
		Kind:      KindManual,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Color:     ColorPurple,
		Icon:      IconStar,
		Label:     ManualLabel,
		Popup: []string{
			ManualLabel + ": (" + FormatCoordinate(p.Latitude) + ", " + FormatCoordinate(p.Longitude) + ")",
		},
	}
	s.Markers = append(s.Markers, m)
	return m
}

// Count returns the number of markers of the given kind.
func (s *MapSurface) Count(kind MarkerKind) int {
	n := 0
	for _, m := range s.Markers {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// GeoJSON returns the markers as a FeatureCollection of points, with the
// marker style in each feature's properties.
func (s *MapSurface) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range s.Markers {
		f := geojson.NewFeature(orb.Point{m.Longitude, m.Latitude})
		f.Properties["kind"] = string(m.Kind)
		f.Properties["color"] = string(m.Color)
		f.Properties["popup"] = m.Popup
		if m.Icon != "" {
			f.Properties["icon"] = string(m.Icon)
		}
		if m.IsCircle() {
			f.Properties["radius"] = m.Radius
			f.Properties["filled"] = m.Filled
		}
		if m.Label != "" {
			f.Properties["label"] = m.Label
		}
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"center": []float64{s.Center.Lng, s.Center.Lat},
		"zoom":   s.Zoom,
	}
	return fc
}
