package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"substore-client/internal/domain"
)

// Module provides the metrics registry and collector
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(func(r *prometheus.Registry) prometheus.Registerer { return r }),
	fx.Provide(func(r *prometheus.Registry) prometheus.Gatherer { return r }),
	fx.Provide(NewCollector),
	fx.Provide(func(c *Collector) domain.MetricsCollector { return c }),
)

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

type Collector struct {
	logger          *zap.Logger
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	usageLookups    *prometheus.CounterVec
	savesTotal      *prometheus.CounterVec
	staleRefreshes  *prometheus.CounterVec
	artifactSyncs   *prometheus.CounterVec
	lastSyncStatus  *prometheus.GaugeVec
}

func NewCollector(reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		logger: logger,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "substore_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "substore_request_duration_seconds",
				Help:    "Duration of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "substore_usage_cache_lookups_total",
				Help: "Total number of usage cache lookups",
			},
			[]string{"result"},
		),
		usageLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "substore_usage_lookups_total",
				Help: "Total number of subscription usage requests",
			},
			[]string{"status"},
		),
		savesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "substore_saves_total",
				Help: "Total number of entity saves",
			},
			[]string{"kind", "status"},
		),
		staleRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "substore_stale_refreshes_total",
				Help: "Total number of refreshes caused by a stale local copy",
			},
			[]string{"kind"},
		),
		artifactSyncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "substore_artifact_syncs_total",
				Help: "Total number of artifact sync requests",
			},
			[]string{"artifact", "status"},
		),
		lastSyncStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "substore_artifact_sync_status",
				Help: "Latest artifact sync status (1 for success, 0 for failure)",
			},
			[]string{"artifact"},
		),
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (c *Collector) RecordRequest(method, outcome string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, outcome).Inc()
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) RecordUsageLookup(ok bool) {
	c.usageLookups.WithLabelValues(status(ok)).Inc()
}

func (c *Collector) RecordSave(kind domain.Kind, err error) {
	c.savesTotal.WithLabelValues(kind.String(), status(err == nil)).Inc()
}

func (c *Collector) RecordStaleRefresh(kind domain.Kind) {
	c.staleRefreshes.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) RecordArtifactSync(name string, err error) {
	c.artifactSyncs.WithLabelValues(name, status(err == nil)).Inc()

	value := 0.0
	if err == nil {
		value = 1.0
	}
	c.lastSyncStatus.WithLabelValues(name).Set(value)
	if err != nil {
		c.logger.Debug("artifact sync recorded as failed",
			zap.String("artifact", name),
			zap.Error(err))
	}
}
