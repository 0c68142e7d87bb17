package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/soilwire/soilwire/internal/ports"
)

// PromObs backs the Observability port with a dedicated Prometheus
// registry and logrus. Each instance owns its registry so multiple
// runtimes (and tests) can coexist in one process.
type PromObs struct {
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_readings_ingested_total",
		Help: "Readings accepted from the sensor stream.",
	})
	uploaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_readings_uploaded_total",
		Help: "Readings confirmed delivered to the remote sink.",
	})
	spooled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_readings_spooled_total",
		Help: "Readings queued for later delivery.",
	})
	drained := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_readings_drained_total",
		Help: "Backlog readings delivered during drain passes.",
	})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_readings_malformed_total",
		Help: "Sensor lines dropped because they failed to parse.",
	})
	lost := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_readings_lost_total",
		Help: "Readings lost after both durable paths failed.",
	})
	probeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_probe_failures_total",
		Help: "Reachability probe failures.",
	})
	journalErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilwire_journal_errors_total",
		Help: "Primary journal append failures.",
	})
	spoolDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soilwire_spool_depth",
		Help: "Readings currently queued in the volatile spool tier.",
	})
	linkUp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soilwire_link_up",
		Help: "1 when the last reachability probe succeeded.",
	})
	uploadLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "soilwire_upload_latency_seconds",
		Help:    "Latency of single-row appends to the remote sink.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(ingested, uploaded, spooled, drained, malformed,
		lost, probeFailures, journalErrors, spoolDepth, linkUp, uploadLatency)

	return &PromObs{
		registry: registry,
		counters: map[string]prometheus.Counter{
			"soilwire_readings_ingested_total":  ingested,
			"soilwire_readings_uploaded_total":  uploaded,
			"soilwire_readings_spooled_total":   spooled,
			"soilwire_readings_drained_total":   drained,
			"soilwire_readings_malformed_total": malformed,
			"soilwire_readings_lost_total":      lost,
			"soilwire_probe_failures_total":     probeFailures,
			"soilwire_journal_errors_total":     journalErrors,
		},
		gauges: map[string]prometheus.Gauge{
			"soilwire_spool_depth": spoolDepth,
			"soilwire_link_up":     linkUp,
		},
		histos: map[string]prometheus.Observer{
			"soilwire_upload_latency_seconds": uploadLatency,
		},
	}
}

// Registry exposes the instance registry for the /metrics endpoint.
func (p *PromObs) Registry() *prometheus.Registry { return p.registry }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	logrus.WithFields(toLogrus(fields)).Info(msg)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	logrus.WithFields(toLogrus(fields)).Warn(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	logrus.WithFields(toLogrus(fields)).WithError(err).Error(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	// Critical means a durability guarantee could not be upheld. Loud, but
	// never fatal: the relay keeps running on whatever still works.
	logrus.WithFields(toLogrus(fields)).WithError(err).Error("CRITICAL: " + msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func toLogrus(fields []ports.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
