package core

// MarkerColor is a named marker color. The names match the Leaflet
// awesome-markers palette used by the map view.
type MarkerColor string

const (
	ColorRed    MarkerColor = "red"
	ColorBlue   MarkerColor = "blue"
	ColorGreen  MarkerColor = "green"
	ColorPurple MarkerColor = "purple"
	ColorBlack  MarkerColor = "black"
)

// MarkerKind identifies where a marker came from.
type MarkerKind string

const (
	KindSample    MarkerKind = "sample"
	KindAuxiliary MarkerKind = "auxiliary"
	KindManual    MarkerKind = "manual"
)

// MarkerIcon is the glyph drawn inside a pin marker.
type MarkerIcon string

const (
	IconInfo MarkerIcon = "info-sign"
	IconStar MarkerIcon = "star"
)

// AuxiliaryRadius is the pixel radius of auxiliary circle markers.
const AuxiliaryRadius = 10

// Code is the categorical value of a primary row. Raw keeps the cell text
// for display; Value is only meaningful when Valid is true.
type Code struct {
	Raw   string `json:"raw"`
	Value int    `json:"value"`
	Valid bool   `json:"valid"`
}

// SamplePoint is one row of the primary dataset.
type SamplePoint struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Code         Code    `json:"code"`
	RowIndex     int     `json:"row_index"` // 0-based data row
	RawLatitude  string  `json:"-"`
	RawLongitude string  `json:"-"`
}

// AuxiliaryPoint is one row of the optional secondary dataset.
type AuxiliaryPoint struct {
	SerialNumber string  `json:"serial_number"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RowIndex     int     `json:"row_index"`
	RawLatitude  string  `json:"-"`
	RawLongitude string  `json:"-"`
}

// ManualPoint is a point entered by hand.
type ManualPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Marker is one visual element on the map surface.
type Marker struct {
	Kind      MarkerKind  `json:"kind"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Color     MarkerColor `json:"color"`
	Icon      MarkerIcon  `json:"icon,omitempty"`   // pin markers only
	Radius    int         `json:"radius,omitempty"` // circle markers only
	Filled    bool        `json:"filled,omitempty"`
	Label     string      `json:"label,omitempty"`
	Popup     []string    `json:"popup"` // one entry per popup line
}

// IsCircle reports whether the marker is drawn as a circle rather than a pin.
func (m Marker) IsCircle() bool {
	return m.Radius > 0
}

// Upload is the raw content of an uploaded file.
type Upload struct {
	FileName string `json:"file_name"`
	Data     []byte `json:"data"`
}
