package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder_Exposes(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)
	r.IncPage(PageWritten)
	r.IncPage(PageWritten)
	r.IncPage(PageOrphan)
	r.IncExport(ExportPartial)
	r.ObserveExportDuration(150 * time.Millisecond)
	r.SetNotebookSize(3, 12)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`onexport_pages_total{outcome="written"} 2`,
		`onexport_pages_total{outcome="orphan"} 1`,
		`onexport_exports_total{outcome="partial"} 1`,
		`onexport_notebook_pages 12`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncPage(PageFailed)
	r.IncExport(ExportFailed)
	r.ObserveExportDuration(time.Second)
	r.SetNotebookSize(0, 0)
}
