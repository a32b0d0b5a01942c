package core

// Classifier maps a sample's code to a marker color. Codes absent from
// Colors, and codes that are not integers at all, get Default.
type Classifier struct {
	Colors  map[int]MarkerColor
	Default MarkerColor
}

// DefaultClassifier distinguishes codes 1 and 2; everything else, code 3
// included, is drawn with the fallback green.
var DefaultClassifier = Classifier{
	Colors: map[int]MarkerColor{
		1: ColorRed,
		2: ColorBlue,
	},
	Default: ColorGreen,
}

// Color returns the marker color for code.
func (c Classifier) Color(code Code) MarkerColor {
	if code.Valid {
		if color, ok := c.Colors[code.Value]; ok {
			return color
		}
	}
	return c.Default
}

// LegendTitle is the heading of the legend panel.
const LegendTitle = "Code Interpreter"

// LegendEntry is one line of the legend panel.
type LegendEntry struct {
	Code    int         `json:"code"`
	Meaning string      `json:"meaning"`
	Color   MarkerColor `json:"color"`
}

// legendMeanings is the nutrient-status text for each documented code.
// It lists three codes while the classifier only distinguishes two.
var legendMeanings = []struct {
	code    int
	meaning string
}{
	{1, "Low pH, N, Zn and Mn"},
	{2, "Low pH, Zn and Mn"},
	{3, "Low pH, N and Mn"},
}

// Legend returns the legend entries with the color each code actually
// renders with.
func (c Classifier) Legend() []LegendEntry {
	entries := make([]LegendEntry, len(legendMeanings))
	for i, m := range legendMeanings {
		entries[i] = LegendEntry{
			Code:    m.code,
			Meaning: m.meaning,
			Color:   c.Color(Code{Value: m.code, Valid: true}),
		}
	}
	return entries
}
