package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items/42", nil))

	body := scrape(t)
	want := `soilmap_http_requests_total{method="GET",path="/api/items/{id}",status="418"}`
	if !strings.Contains(body, want) {
		t.Errorf("metrics output missing %s", want)
	}
	if strings.Contains(body, `path="/api/items/42"`) {
		t.Error("raw path leaked into labels")
	}
}

func TestMiddleware_DefaultStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/quiet", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quiet", nil))

	want := `soilmap_http_requests_total{method="GET",path="/quiet",status="200"}`
	if body := scrape(t); !strings.Contains(body, want) {
		t.Errorf("metrics output missing %s", want)
	}
}

func TestObserveExport(t *testing.T) {
	ObserveExport("PNG", "software", 10*time.Millisecond, nil)
	ObserveExport("JPG", "software", 0, errors.New("boom"))

	body := scrape(t)
	for _, want := range []string{
		`soilmap_export_total{format="PNG",result="ok"}`,
		`soilmap_export_total{format="JPG",result="error"}`,
		`soilmap_export_duration_seconds_count{backend="software"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestObserveUpload(t *testing.T) {
	ObserveUpload("primary", nil)
	ObserveUpload("auxiliary", errors.New("schema"))

	body := scrape(t)
	for _, want := range []string{
		`soilmap_map_uploads_total{dataset="primary",result="ok"}`,
		`soilmap_map_uploads_total{dataset="auxiliary",result="rejected"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestRenderSlots(t *testing.T) {
	var obs RenderSlots
	obs.SlotWaited(time.Millisecond, nil)
	obs.SlotWaited(time.Second, errors.New("too many concurrent renders"))
	obs.SlotWaited(0, context.Canceled)
	obs.SlotsActive(2)

	body := scrape(t)
	for _, want := range []string{
		`soilmap_export_render_slot_wait_seconds_count{result="acquired"} 1`,
		`soilmap_export_render_slot_wait_seconds_count{result="rejected"} 1`,
		`soilmap_export_render_slot_wait_seconds_count{result="canceled"} 1`,
		"soilmap_export_render_slots_active 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
