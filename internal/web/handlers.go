package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/export"
	"github.com/JonMunkholm/SoilMap/internal/logging"
	"github.com/JonMunkholm/SoilMap/internal/metrics"
	"github.com/JonMunkholm/SoilMap/internal/session"
	"github.com/JonMunkholm/SoilMap/internal/web/views"
)

var (
	errNoFile         = errors.New("no file provided")
	errUnknownDataset = errors.New("unknown dataset")
)

// handleIndex renders the map page from the session state.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	comp, err := s.compose(r.Context(), st)
	s.renderPage(w, r, s.pageData(st, comp, err))
}

// handleUpload stores a primary or auxiliary CSV and redirects back to the
// page. Files that fail the column check are kept so the page can show the
// warning, the same way a fresh upload of a bad file would.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ds, err := parseDataset(chi.URLParam(r, "dataset"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	st := stateFrom(r.Context())
	if ds == core.DatasetAuxiliary {
		if err := primaryReady(st); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
	}

	upload, err := s.readUpload(w, r)
	if err != nil {
		metrics.ObserveUpload(string(ds), err)
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.inspectUpload(r.Context(), upload, ds)
	storeUpload(st, upload, ds)
	if err := s.saveState(r, st); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAddMarker adds one manual point. Every confirmation adds a marker,
// duplicates included.
func (s *Server) handleAddMarker(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	st := stateFrom(r.Context())
	if err := primaryReady(st); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	p, err := core.ParseManualPoint(r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	st.AddManual(p)
	if err := s.saveState(r, st); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	metrics.ManualPointsAdded.Inc()
	logging.FromContext(r.Context()).Info("manual marker added",
		"latitude", p.Latitude,
		"longitude", p.Longitude,
		"manual_points", len(st.Manual),
	)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleExport rasterizes the current map and renders the page with a
// download link. The image is never stored.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	format, err := export.ParseFormat(r.FormValue("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	st := stateFrom(r.Context())
	comp, err := s.compose(r.Context(), st)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	img, err := s.exportImage(r.Context(), comp.Surface, format)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	st.ExportFormat = string(format)
	if err := s.saveState(r, st); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	d := s.pageData(st, comp, nil)
	d.Download = &views.Download{
		FileName: img.FileName,
		Href:     img.DataURI(),
		Message:  export.SuccessMessage,
	}
	s.renderPage(w, r, d)
}

// handleReset forgets the session's uploads and markers.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.resetSession(r); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// compose re-runs the pipeline for st.
func (s *Server) compose(ctx context.Context, st *session.State) (*core.Composition, error) {
	start := time.Now()
	comp, err := core.Compose(ctx, st.RequestState(), s.classifier)
	metrics.ComposeDuration.Observe(time.Since(start).Seconds())
	return comp, err
}

// exportImage runs one export under the configured render timeout.
func (s *Server) exportImage(ctx context.Context, surface *core.MapSurface, format export.Format) (*export.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Render.Timeout)
	defer cancel()

	start := time.Now()
	img, err := s.exporter.Export(ctx, surface, format)
	metrics.ObserveExport(string(format), s.exporter.Backend(), time.Since(start), err)
	return img, err
}

func (s *Server) resetSession(r *http.Request) error {
	st := stateFrom(r.Context())
	st.Reset()
	if err := s.store.Delete(r.Context(), st.ID); err != nil {
		return err
	}
	logging.FromContext(r.Context()).Info("session reset")
	return nil
}

// readUpload reads the multipart "file" field within the size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*core.Upload, error) {
	limit := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file too large: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &core.Upload{FileName: header.Filename, Data: data}, nil
}

// inspectUpload parses an upload once for logging and metrics. err is the
// problem that will halt (primary) or be reported for (auxiliary) the file.
func (s *Server) inspectUpload(ctx context.Context, u *core.Upload, ds core.Dataset) (rows, skipped int, err error) {
	rows, skipped, err = checkUpload(u, ds)
	metrics.ObserveUpload(string(ds), err)
	if skipped > 0 {
		metrics.RowsSkipped.WithLabelValues(string(ds)).Add(float64(skipped))
	}

	logger := logging.WithFields(ctx, "dataset", ds, "file", u.FileName, "bytes", len(u.Data))
	if err != nil {
		logger.Warn("dataset rejected", "error", err)
		return rows, skipped, err
	}
	logger.Info("dataset uploaded", "rows", rows, "skipped_rows", skipped)
	return rows, skipped, nil
}

func checkUpload(u *core.Upload, ds core.Dataset) (rows, skipped int, err error) {
	table, err := core.ReadUpload(u)
	if err != nil {
		return 0, 0, err
	}
	if err := core.ValidateColumns(table, ds); err != nil {
		return 0, 0, err
	}
	if ds == core.DatasetAuxiliary {
		points, bad := core.ParseAuxiliary(table)
		return len(points), len(bad), nil
	}
	points, bad := core.ParsePrimary(table)
	if len(points) == 0 {
		return 0, len(bad), core.ErrNoValidRows
	}
	return len(points), len(bad), nil
}

// primaryReady reports why the session's primary dataset cannot carry
// auxiliary points or manual markers yet: ErrNoPrimary, a *SchemaError, a
// decode error, or ErrNoValidRows.
func primaryReady(st *session.State) error {
	if st.Primary == nil {
		return core.ErrNoPrimary
	}
	_, _, err := checkUpload(st.Primary, core.DatasetPrimary)
	return err
}

func storeUpload(st *session.State, u *core.Upload, ds core.Dataset) {
	if ds == core.DatasetAuxiliary {
		st.SetAuxiliary(u)
		return
	}
	st.SetPrimary(u)
}

func parseDataset(s string) (core.Dataset, error) {
	switch core.Dataset(s) {
	case core.DatasetPrimary:
		return core.DatasetPrimary, nil
	case core.DatasetAuxiliary:
		return core.DatasetAuxiliary, nil
	}
	return "", fmt.Errorf("%w: %q", errUnknownDataset, s)
}

// pageData builds the view model. err is the halting pipeline error, if
// any; ErrNoPrimary just means there is nothing to draw yet.
func (s *Server) pageData(st *session.State, comp *core.Composition, err error) views.PageData {
	d := views.PageData{
		LeafletCSS: s.cfg.Map.LeafletCSS,
		LeafletJS:  s.cfg.Map.LeafletJS,
		Format:     st.ExportFormat,
	}
	for _, f := range export.Formats {
		d.Formats = append(d.Formats, string(f))
	}
	if d.Format == "" {
		d.Format = d.Formats[0]
	}
	if st.Primary != nil {
		d.PrimaryFile = st.Primary.FileName
	}
	if st.Auxiliary != nil {
		d.AuxiliaryFile = st.Auxiliary.FileName
	}

	switch {
	case errors.Is(err, core.ErrNoPrimary):
		return d
	case err != nil:
		d.Warning = warningText(err)
		return d
	case comp == nil:
		return d
	}

	d.Map = &views.MapView{
		Surface:     comp.Surface,
		Width:       s.cfg.Map.Width,
		Height:      s.cfg.Map.Height,
		TileURL:     s.cfg.Map.TileURL,
		Attribution: s.cfg.Map.Attribution,
	}
	d.Legend = views.Legend{Title: core.LegendTitle, Entries: comp.Legend}
	d.Report = comp.Report
	d.Skipped = comp.Report.SkippedRows
	if comp.Report.AuxiliaryError != nil {
		d.AuxiliaryWarning = warningText(comp.Report.AuxiliaryError)
	}

	manual := comp.Surface.Center
	if st.LastManual != nil {
		manual = core.LatLng{Lat: st.LastManual.Latitude, Lng: st.LastManual.Longitude}
	}
	d.ManualLatitude = core.FormatCoordinate(manual.Lat)
	d.ManualLongitude = core.FormatCoordinate(manual.Lng)
	return d
}

// warningText is the message shown in place of a map or an overlay.
func warningText(err error) string {
	var schemaErr *core.SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Warning()
	}
	return core.FormatUserError(err)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, d views.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Page(d).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}
