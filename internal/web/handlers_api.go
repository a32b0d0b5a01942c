package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/export"
	"github.com/JonMunkholm/SoilMap/internal/logging"
	"github.com/JonMunkholm/SoilMap/internal/metrics"
)

// MapResponse is the JSON form of the composed map.
type MapResponse struct {
	Surface          *core.MapSurface   `json:"surface"`
	LegendTitle      string             `json:"legend_title"`
	Legend           []core.LegendEntry `json:"legend"`
	Report           core.ComposeReport `json:"report"`
	AuxiliaryWarning string             `json:"auxiliary_warning,omitempty"`
}

// LegendResponse is the legend panel as JSON.
type LegendResponse struct {
	Title   string             `json:"title"`
	Entries []core.LegendEntry `json:"entries"`
}

// ExportResponse carries an exported image inline.
type ExportResponse struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	DataURI  string `json:"data_uri"`
}

// UploadResponse summarises an accepted upload.
type UploadResponse struct {
	Dataset     core.Dataset `json:"dataset"`
	FileName    string       `json:"file_name"`
	Rows        int          `json:"rows"`
	SkippedRows int          `json:"skipped_rows"`
}

// ManualPointRequest is the body of POST /api/markers. Values may be JSON
// numbers or numeric strings.
type ManualPointRequest struct {
	Latitude  json.Number `json:"latitude"`
	Longitude json.Number `json:"longitude"`
}

// ManualPointResponse reports the point added and the running total.
type ManualPointResponse struct {
	Point        core.ManualPoint `json:"point"`
	ManualPoints int              `json:"manual_points"`
}

// HealthResponse is served at /healthz.
type HealthResponse struct {
	Status  string                    `json:"status"`
	Backend string                    `json:"render_backend"`
	Render  *core.RenderLimiterStatus `json:"render,omitempty"`
	Session string                    `json:"session_store"`
}

// pinger is implemented by stores backed by a remote service.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleMapJSON returns the composed map of the session.
func (s *Server) handleMapJSON(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.composeOrRespond(w, r)
	if !ok {
		return
	}

	resp := MapResponse{
		Surface:     comp.Surface,
		LegendTitle: core.LegendTitle,
		Legend:      comp.Legend,
		Report:      comp.Report,
	}
	if comp.Report.AuxiliaryError != nil {
		resp.AuxiliaryWarning = warningText(comp.Report.AuxiliaryError)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleMapGeoJSON returns the markers as a GeoJSON FeatureCollection.
func (s *Server) handleMapGeoJSON(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.composeOrRespond(w, r)
	if !ok {
		return
	}

	data, err := comp.Surface.GeoJSON().MarshalJSON()
	if err != nil {
		s.respondError(w, r, fmt.Errorf("encode geojson: %w", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// handleLegend returns the legend. It does not depend on the session.
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, LegendResponse{Title: core.LegendTitle, Entries: s.classifier.Legend()})
}

// handleAPIExport exports the session's map. The format comes from the
// query string, then the session's last choice, then JPG.
func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())

	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = st.ExportFormat
	}
	if raw == "" {
		raw = string(export.Formats[0])
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	comp, ok := s.composeOrRespond(w, r)
	if !ok {
		return
	}

	img, err := s.exportImage(r.Context(), comp.Surface, format)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, ExportResponse{
		ID:       img.ID.String(),
		FileName: img.FileName,
		MIMEType: img.MIMEType,
		Width:    img.Width,
		Height:   img.Height,
		DataURI:  img.DataURI(),
	})
}

// handleAPIUpload stores a dataset. Unlike the form upload, files that fail
// the column check are rejected and the session is left unchanged.
func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	ds, err := parseDataset(chi.URLParam(r, "dataset"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
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
	rows, skipped, err := s.inspectUpload(r.Context(), upload, ds)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	storeUpload(st, upload, ds)
	if err := s.saveState(r, st); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, r, http.StatusCreated, UploadResponse{
		Dataset:     ds,
		FileName:    upload.FileName,
		Rows:        rows,
		SkippedRows: skipped,
	})
}

// handleAPIAddMarker adds one manual point from a JSON body.
func (s *Server) handleAPIAddMarker(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	if err := primaryReady(st); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var req ManualPointRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("manual latitude/longitude: %w", err), http.StatusBadRequest)
		return
	}
	p, err := core.ParseManualPoint(req.Latitude.String(), req.Longitude.String())
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

	writeJSON(w, r, http.StatusCreated, ManualPointResponse{Point: p, ManualPoints: len(st.Manual)})
}

// handleAPIReset clears the session.
func (s *Server) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	if err := s.resetSession(r); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports render capacity and session store reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Backend: s.exporter.Backend(),
		Session: s.cfg.Session.Backend,
	}
	if s.limiter != nil {
		status := s.limiter.Status()
		resp.Render = &status
	}

	code := http.StatusOK
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("session store unreachable", "error", err)
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, r, code, resp)
}

// composeOrRespond composes the session's map, writing the error response
// itself when there is no map to return.
func (s *Server) composeOrRespond(w http.ResponseWriter, r *http.Request) (*core.Composition, bool) {
	comp, err := s.compose(r.Context(), stateFrom(r.Context()))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return comp, true
}
