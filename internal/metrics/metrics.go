// Package metrics aggregates engine events into Prometheus collectors and
// writes them to the sidecar file at run end.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/tonykolomeytsev/figx/internal/events"
)

const FileName = "metrics.prom"

// Collector owns the run's metric registry. Feed it envelopes from the
// event hub and flush with WriteFile.
type Collector struct {
	registry *prometheus.Registry

	resourcesTotal  *prometheus.CounterVec
	filesTotal      prometheus.Counter
	cacheHitsTotal  prometheus.Counter
	cacheMissTotal  prometheus.Counter
	bytesDownloaded prometheus.Counter
	stepDuration    *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		resourcesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "figx_resources_total",
			Help: "Pipelines finished, by result.",
		}, []string{"result"}),
		filesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figx_files_total",
			Help: "Output files written.",
		}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figx_cache_hits_total",
			Help: "Cache lookups answered without producing.",
		}),
		cacheMissTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figx_cache_misses_total",
			Help: "Cache lookups that elected a producer.",
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figx_bytes_downloaded_total",
			Help: "Bytes fetched from the remote.",
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "figx_step_duration_seconds",
			Help:    "Wall time per pipeline step.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind"}),
	}
	c.registry.MustRegister(
		c.resourcesTotal,
		c.filesTotal,
		c.cacheHitsTotal,
		c.cacheMissTotal,
		c.bytesDownloaded,
		c.stepDuration,
	)
	return c
}

// Observe folds one event into the collectors.
func (c *Collector) Observe(env events.Envelope) {
	switch ev := env.Ev.(type) {
	case events.PipelineFinished:
		if ev.Err != nil {
			c.resourcesTotal.WithLabelValues("failed").Inc()
		} else {
			c.resourcesTotal.WithLabelValues("ok").Inc()
			c.filesTotal.Inc()
		}
	case events.CacheHit:
		c.cacheHitsTotal.Inc()
	case events.CacheMiss:
		c.cacheMissTotal.Inc()
	case events.BytesDownloaded:
		c.bytesDownloaded.Add(float64(ev.Bytes))
	case events.StepFinished:
		c.stepDuration.WithLabelValues(ev.Kind).Observe(ev.Duration.Seconds())
	}
}

// WriteFile renders the registry in Prometheus text format to
// <outDir>/metrics.prom, atomically.
func (c *Collector) WriteFile(outDir string) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(outDir, ".metrics.prom.tmp*")
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(outDir, FileName))
}
