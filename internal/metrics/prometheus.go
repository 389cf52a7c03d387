package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onexport"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	pages          *prom.CounterVec
	exports        *prom.CounterVec
	exportDuration prom.Histogram
	sections       prom.Gauge
	pageCount      prom.Gauge
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs the metrics and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		pages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Page files processed by outcome",
		}, []string{"outcome"}),
		exports: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export runs by outcome",
		}, []string{"outcome"}),
		exportDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of a complete export run",
			Buckets:   prom.DefBuckets,
		}),
		sections: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "notebook_sections",
			Help:      "Sections in the last exported notebook",
		}),
		pageCount: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "notebook_pages",
			Help:      "Pages in the last exported notebook",
		}),
	}
	reg.MustRegister(p.pages, p.exports, p.exportDuration, p.sections, p.pageCount)
	return p
}

func (p *PrometheusRecorder) IncPage(outcome string) {
	p.pages.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncExport(outcome string) {
	p.exports.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveExportDuration(d time.Duration) {
	p.exportDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetNotebookSize(sections, pages int) {
	p.sections.Set(float64(sections))
	p.pageCount.Set(float64(pages))
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
