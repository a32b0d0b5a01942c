package web

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/SoilMap/internal/config"
	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/render"
	"github.com/JonMunkholm/SoilMap/internal/web/views"
)

// MapDocument returns the document function of the browser rasterizer: the
// same Leaflet view as the page, with the stylesheet and script inlined and
// the legend drawn over the map.
func MapDocument(m config.MapConfig, legend []core.LegendEntry) (render.DocumentFunc, error) {
	style, err := fs.ReadFile(staticFiles, "static/style.css")
	if err != nil {
		return nil, fmt.Errorf("read style: %w", err)
	}
	script, err := fs.ReadFile(staticFiles, "static/map.js")
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	return func(ctx context.Context, surface *core.MapSurface) (string, error) {
		var b strings.Builder
		err := views.Document(views.DocumentData{
			Map: views.MapView{
				Surface:     surface,
				Width:       m.Width,
				Height:      m.Height,
				TileURL:     m.TileURL,
				Attribution: m.Attribution,
			},
			Legend:     views.Legend{Title: core.LegendTitle, Entries: legend},
			LeafletCSS: m.LeafletCSS,
			LeafletJS:  m.LeafletJS,
			Style:      string(style),
			Script:     string(script),
		}).Render(ctx, &b)
		if err != nil {
			return "", err
		}
		return b.String(), nil
	}, nil
}
