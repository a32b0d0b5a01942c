// Package views renders the HTML of the map page and of the standalone map
// document used for raster export.
package views

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/render"
)

// Title is the page heading.
const Title = "SOIL STATUS MAP"

// MapView describes the Leaflet container and the surface it draws.
type MapView struct {
	Surface     *core.MapSurface
	Width       int
	Height      int
	TileURL     string
	Attribution string

	// Static disables controls and animations for screenshots.
	Static bool
}

// Legend is the code legend panel.
type Legend struct {
	Title   string
	Entries []core.LegendEntry
}

// Notice is an error shown above the page content.
type Notice struct {
	Message string
	Action  string
	Code    string
}

// Download is the result of an export.
type Download struct {
	FileName string
	Href     string
	Message  string
}

// htmlWriter accumulates the first write error so templates can be written
// without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// head opens the document and the head element; callers close it.
func (h *htmlWriter) head(title string, stylesheets ...string) {
	h.raw("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	h.raw("<title>")
	h.text(title)
	h.raw("</title>\n")
	for _, href := range stylesheets {
		if href == "" {
			continue
		}
		h.raw(`<link rel="stylesheet"`)
		h.attr("href", href)
		h.raw(">\n")
	}
}

// LegendPanel renders the legend. Each swatch uses the color the code is
// actually drawn with.
func LegendPanel(l Legend) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="legend">` + "\n<h3>")
		h.text(l.Title)
		h.raw("</h3>\n<ul>\n")
		for _, e := range l.Entries {
			h.raw(`<li><span class="swatch"`)
			h.attr("style", "background:"+render.Hex(e.Color))
			h.raw("></span><b>Code ")
			h.text(strconv.Itoa(e.Code))
			h.raw("</b>: ")
			h.text(e.Meaning)
			h.raw("</li>\n")
		}
		h.raw("</ul>\n</div>\n")
		return h.err
	})
}

// MapContainer renders the map div and the surface as embedded JSON.
func MapContainer(m MapView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		data, err := json.Marshal(m.Surface)
		if err != nil {
			return fmt.Errorf("encode surface: %w", err)
		}

		h := &htmlWriter{w: w}
		h.raw(`<div id="map" class="map"`)
		h.attr("style", fmt.Sprintf("width:%dpx;height:%dpx", m.Width, m.Height))
		h.attr("data-tiles", m.TileURL)
		h.attr("data-attribution", m.Attribution)
		if m.Static {
			h.attr("data-static", "true")
		}
		h.raw("></div>\n")

		// json.Marshal escapes <, > and &, so the payload cannot close the tag.
		h.raw(`<script type="application/json" id="map-data">`)
		h.raw(string(data))
		h.raw("</script>\n")
		return h.err
	})
}

// ErrorPage renders a standalone error page with a way back to the map.
func ErrorPage(n Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.head(Title, "/static/style.css")
		h.raw("</head>\n<body>\n<main class=\"layout\">\n<div>\n")
		h.raw(`<h1 class="title">`)
		h.text(Title)
		h.raw("</h1>\n")
		h.render(ctx, NoticeBox(n))
		h.raw(`<p><a href="/">Back to the map</a></p>` + "\n")
		h.raw("</div>\n</main>\n</body>\n</html>\n")
		return h.err
	})
}

// NoticeBox renders an error message with its support code.
func NoticeBox(n Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="notice" role="alert">`)
		h.text(n.Message)
		if n.Code != "" {
			h.raw(` <span class="code">(`)
			h.text(n.Code)
			h.raw(")</span>")
		}
		if n.Action != "" {
			h.raw("<br>")
			h.text(n.Action)
		}
		h.raw("</div>\n")
		return h.err
	})
}
