// Package render turns a composed map surface into a raster image.
//
// Two backends implement [Rasterizer]:
//
//   - [Software] draws the surface with golang.org/x/image/vector and
//     freetype. It needs no external process and is the default.
//   - [Browser] loads the interactive Leaflet document into headless Chrome
//     via go-rod and screenshots the viewport, so the export looks exactly
//     like the on-screen map (tiles included).
//
// Both return PNG bytes of exactly the configured view size. Any failure is
// reported as a [*RasterizationError].
package render

import (
	"context"
	"fmt"
	"image/color"

	"github.com/JonMunkholm/SoilMap/internal/core"
)

// Backend names accepted by New.
const (
	BackendSoftware = "software"
	BackendBrowser  = "browser"
)

// Rasterizer renders a map surface to PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, s *core.MapSurface) ([]byte, error)
	Name() string
}

// RasterizationError wraps any failure of a rasterizer backend, including a
// browser that cannot be launched.
type RasterizationError struct {
	Backend string
	Err     error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("rasterization failed (%s): %v", e.Backend, e.Err)
}

func (e *RasterizationError) Unwrap() error {
	return e.Err
}

// Options configures New.
type Options struct {
	Backend   string
	Width     int
	Height    int
	ChromeBin string
	Document  DocumentFunc // browser backend only
	Legend    []core.LegendEntry
}

// New returns the rasterizer for opts.Backend.
func New(opts Options) (Rasterizer, error) {
	switch opts.Backend {
	case BackendSoftware, "":
		return NewSoftware(opts.Width, opts.Height, opts.Legend)
	case BackendBrowser:
		if opts.Document == nil {
			return nil, fmt.Errorf("browser rasterizer: document renderer is required")
		}
		return NewBrowser(opts.ChromeBin, opts.Width, opts.Height, opts.Document), nil
	default:
		return nil, fmt.Errorf("unknown render backend %q", opts.Backend)
	}
}

// Palette holds the fill colors of the Leaflet awesome-markers icons, so
// exported images match the interactive view.
var Palette = map[core.MarkerColor]color.RGBA{
	core.ColorRed:    {R: 0xD6, G: 0x3E, B: 0x2A, A: 0xFF},
	core.ColorBlue:   {R: 0x38, G: 0xAA, B: 0xDD, A: 0xFF},
	core.ColorGreen:  {R: 0x72, G: 0xAF, B: 0x26, A: 0xFF},
	core.ColorPurple: {R: 0xD2, G: 0x52, B: 0xB9, A: 0xFF},
	core.ColorBlack:  {R: 0x00, G: 0x00, B: 0x00, A: 0xFF},
}

// RGBA returns the palette color for c, or gray for unknown names.
func RGBA(c core.MarkerColor) color.RGBA {
	if rgba, ok := Palette[c]; ok {
		return rgba
	}
	return color.RGBA{R: 0x57, G: 0x57, B: 0x57, A: 0xFF}
}

// Hex returns c as a CSS hex color.
func Hex(c core.MarkerColor) string {
	rgba := RGBA(c)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}
