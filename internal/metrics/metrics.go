// Package metrics collects per-run counters and writes them in the
// Prometheus text format for a node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"defdoc/internal/registry"
)

const namespace = "defdoc"

// Recorder owns a private registry; nothing is registered globally.
type Recorder struct {
	registry *prometheus.Registry

	definitions  *prometheus.GaugeVec
	links        *prometheus.GaugeVec
	warnings     *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	filesWritten prometheus.Counter
	staleFiles   prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		definitions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "definitions",
			Help:      "Annotated definitions by kind.",
		}, []string{"kind"}),
		links: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "links",
			Help:      "Links recorded by version and link class.",
		}, []string{"version", "class"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal resolution warnings by reason.",
		}, []string{"reason"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Time spent in one resolution pass for one version.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"pass"}),
		filesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Binding files written.",
		}),
		staleFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_files",
			Help:      "Binding files whose generated blocks are out of date.",
		}),
	}
	r.registry.MustRegister(r.definitions, r.links, r.warnings, r.passDuration, r.filesWritten, r.staleFiles)
	return r
}

// Raw exposes the underlying registry, mostly for tests.
func (r *Recorder) Raw() *prometheus.Registry {
	return r.registry
}

// ObserveRegistry sets the definition and link gauges from the final state.
func (r *Recorder) ObserveRegistry(reg *registry.Registry) {
	r.definitions.Reset()
	r.links.Reset()
	for _, k := range []registry.Kind{registry.KindModule, registry.KindClass, registry.KindFunction} {
		r.definitions.WithLabelValues(k.String()).Set(0)
	}
	for _, d := range reg.All() {
		r.definitions.WithLabelValues(d.Kind.String()).Inc()
		for _, vl := range d.Links {
			for _, l := range vl.Links {
				r.links.WithLabelValues(vl.Label, LinkClass(d, l)).Inc()
			}
		}
	}
}

// LinkClass buckets a link as documentation, header or source.
func LinkClass(d *registry.Definition, l registry.Link) string {
	switch l.Category {
	case "documentation":
		return "documentation"
	case d.HeaderPath:
		return "header"
	}
	return "source"
}

func (r *Recorder) Warning(reason string) {
	r.warnings.WithLabelValues(reason).Inc()
}

func (r *Recorder) ObservePass(pass string, seconds float64) {
	r.passDuration.WithLabelValues(pass).Observe(seconds)
}

func (r *Recorder) FilesWritten(n int) {
	r.filesWritten.Add(float64(n))
}

func (r *Recorder) StaleFiles(n int) {
	r.staleFiles.Set(float64(n))
}

// WriteTextfile writes all metrics to path, creating its directory.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
