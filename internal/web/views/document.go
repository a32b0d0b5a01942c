package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// DocumentData is the input of the standalone map document.
type DocumentData struct {
	Map        MapView
	Legend     Legend
	LeafletCSS string
	LeafletJS  string

	// Style and Script are inlined; the document is loaded without an
	// origin and cannot fetch /static.
	Style  string
	Script string
}

// Document renders a self-contained page holding only the map and the
// legend, sized to the map view. The headless browser rasterizer
// screenshots it.
func Document(d DocumentData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		d.Map.Static = true

		h.head(Title, d.LeafletCSS)
		h.raw("<style>\n")
		h.raw(d.Style)
		h.raw("\nhtml, body { margin: 0; padding: 0; overflow: hidden; }\n.map { border: 0; }\n</style>\n</head>\n<body>\n")
		h.raw(`<div class="map-overlay" style="position:relative">` + "\n")
		h.render(ctx, MapContainer(d.Map))
		if len(d.Legend.Entries) > 0 {
			h.render(ctx, LegendPanel(d.Legend))
		}
		h.raw("</div>\n<script")
		h.attr("src", d.LeafletJS)
		h.raw("></script>\n<script>\n")
		h.raw(d.Script)
		h.raw("</script>\n</body>\n</html>\n")
		return h.err
	})
}
