package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/SoilMap/internal/core"
)

// PageData is everything the map page shows for one request.
type PageData struct {
	LeafletCSS string
	LeafletJS  string

	Notice      *Notice
	PrimaryFile string

	// Warning replaces everything below the primary upload form.
	Warning string

	Map     *MapView
	Legend  Legend
	Report  core.ComposeReport
	Skipped []core.RowError

	AuxiliaryFile    string
	AuxiliaryWarning string

	ManualLatitude  string
	ManualLongitude string

	Formats  []string
	Format   string
	Download *Download
}

// Page renders the map page.
func Page(d PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		showMap := d.Warning == "" && d.Map != nil

		if showMap {
			h.head(Title, d.LeafletCSS, "/static/style.css")
		} else {
			h.head(Title, "/static/style.css")
		}
		h.raw("</head>\n<body>\n<div class=\"layout\">\n")

		if showMap {
			h.raw(`<aside class="sidebar">` + "\n")
			h.render(ctx, LegendPanel(d.Legend))
			h.render(ctx, manualForm(d))
			h.raw("</aside>\n")
		}

		h.raw("<main>\n")
		h.raw(`<h1 class="title">`)
		h.text(Title)
		h.raw("</h1>\n")

		if d.Notice != nil {
			h.render(ctx, NoticeBox(*d.Notice))
		}

		h.render(ctx, uploadForm("/upload/primary", "primary-file", "Choose the main CSV file", d.PrimaryFile))

		switch {
		case d.Warning != "":
			h.raw(`<div class="warning" role="alert">`)
			h.text(d.Warning)
			h.raw("</div>\n")
		case showMap:
			h.render(ctx, MapContainer(*d.Map))
			h.render(ctx, skippedRows(d.Skipped))
			h.render(ctx, uploadForm("/upload/auxiliary", "auxiliary-file", "Choose the additional CSV file", d.AuxiliaryFile))
			if d.AuxiliaryWarning != "" {
				h.raw(`<div class="warning" role="alert">`)
				h.text(d.AuxiliaryWarning)
				h.raw("</div>\n")
			}
			h.render(ctx, exportForm(d))
		}

		if d.PrimaryFile != "" {
			h.raw(`<form method="post" action="/reset"><button type="submit" class="secondary">Start over</button></form>` + "\n")
		}
		h.raw("</main>\n</div>\n")

		if showMap {
			h.raw("<script")
			h.attr("src", d.LeafletJS)
			h.raw("></script>\n")
			h.raw(`<script src="/static/map.js"></script>` + "\n")
		}
		h.raw("</body>\n</html>\n")
		return h.err
	})
}

func uploadForm(action, id, label, current string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<form method="post" enctype="multipart/form-data"`)
		h.attr("action", action)
		h.raw(">\n<label")
		h.attr("for", id)
		h.raw(">")
		h.text(label)
		h.raw("</label>\n<input type=\"file\" name=\"file\" accept=\".csv,text/csv\" required")
		h.attr("id", id)
		h.raw(">\n")
		if current != "" {
			h.raw(`<span class="file-name">`)
			h.text(current)
			h.raw("</span>\n")
		}
		h.raw("<button type=\"submit\">Upload</button>\n</form>\n")
		return h.err
	})
}

func manualForm(d PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<h2>Add Soil GPS coordinates</h2>\n")
		h.raw(`<form method="post" action="/markers">` + "\n")
		h.raw(`<label for="manual-latitude">Enter Latitude:</label>` + "\n")
		h.raw(`<input type="number" step="any" min="-90" max="90" id="manual-latitude" name="latitude" required`)
		h.attr("value", d.ManualLatitude)
		h.raw(">\n")
		h.raw(`<label for="manual-longitude">Enter Longitude:</label>` + "\n")
		h.raw(`<input type="number" step="any" min="-180" max="180" id="manual-longitude" name="longitude" required`)
		h.attr("value", d.ManualLongitude)
		h.raw(">\n")
		h.raw("<button type=\"submit\">Add Marker</button>\n</form>\n")
		if d.Report.ManualPoints > 0 {
			h.raw(`<p class="file-name">`)
			h.text(strconv.Itoa(d.Report.ManualPoints))
			h.raw(" custom marker(s) placed</p>\n")
		}
		return h.err
	})
}

func skippedRows(rows []core.RowError) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(rows) == 0 {
			return nil
		}
		h := &htmlWriter{w: w}
		h.raw(`<details class="skipped">` + "\n<summary>")
		h.text(strconv.Itoa(len(rows)))
		h.raw(" row(s) skipped</summary>\n<ul>\n")
		for _, r := range rows {
			h.raw("<li>")
			h.text(string(r.Dataset) + " line " + strconv.Itoa(r.Line) + ": " + r.Field + " " + strconv.Quote(r.Value) + " " + r.Reason)
			h.raw("</li>\n")
		}
		h.raw("</ul>\n</details>\n")
		return h.err
	})
}

func exportForm(d PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<form method="post" action="/export">` + "\n")
		h.raw(`<label for="export-format">Select export format:</label>` + "\n")
		h.raw(`<select id="export-format" name="format">` + "\n")
		for _, f := range d.Formats {
			h.raw("<option")
			h.attr("value", f)
			if f == d.Format {
				h.raw(" selected")
			}
			h.raw(">")
			h.text(f)
			h.raw("</option>\n")
		}
		h.raw("</select>\n<button type=\"submit\">Export Map</button>\n</form>\n")

		if d.Download != nil {
			h.raw("<p><a")
			h.attr("href", d.Download.Href)
			h.attr("download", d.Download.FileName)
			h.raw(">Download map</a></p>\n")
			h.raw(`<div class="success">`)
			h.text(d.Download.Message)
			h.raw("</div>\n")
		}
		return h.err
	})
}
