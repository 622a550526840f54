package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config identifies the emitting service on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// RoutingMetrics captures counters for the tenant data-routing layer and the
// points ledger.
type RoutingMetrics struct {
	shardConnects  *prometheus.CounterVec
	shardEvictions *prometheus.CounterVec
	modelCacheHits prometheus.Counter
	modelCacheMiss prometheus.Counter
	pointsIssued   *prometheus.CounterVec
	pointsRedeemed *prometheus.CounterVec
	pointsExpired  prometheus.Counter
}

var (
	routingMetricsOnce sync.Once
	routingMetrics     *RoutingMetrics
)

// Routing returns the process-wide routing metrics.
func Routing() *RoutingMetrics {
	return RoutingWithConfig(Config{})
}

// RoutingWithConfig initializes the routing metrics once with the given config.
func RoutingWithConfig(cfg Config) *RoutingMetrics {
	routingMetricsOnce.Do(func() {
		routingMetrics = newRoutingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return routingMetrics
}

// ResetRoutingMetricsForTest clears the singleton between tests.
func ResetRoutingMetricsForTest() {
	routingMetricsOnce = sync.Once{}
	routingMetrics = nil
}

func newRoutingMetrics(registerer prometheus.Registerer, cfg Config) *RoutingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tillway"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "development"
	}
	constLabels := prometheus.Labels{
		"service":     serviceName,
		"environment": environment,
	}

	m := &RoutingMetrics{
		shardConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tillway_shard_connects_total",
			Help:        "Shard connections opened, by shard id.",
			ConstLabels: constLabels,
		}, []string{"shard_id"}),
		shardEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tillway_shard_evictions_total",
			Help:        "Stale shard connections evicted from the registry cache.",
			ConstLabels: constLabels,
		}, []string{"shard_id"}),
		modelCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tillway_tenant_model_cache_hits_total",
			Help:        "Tenant model resolutions served from the model cache.",
			ConstLabels: constLabels,
		}),
		modelCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tillway_tenant_model_cache_misses_total",
			Help:        "Tenant model resolutions that registered a new model.",
			ConstLabels: constLabels,
		}),
		pointsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tillway_points_issued_total",
			Help:        "Loyalty points issued, by store id.",
			ConstLabels: constLabels,
		}, []string{"store_id"}),
		pointsRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tillway_points_redeemed_total",
			Help:        "Loyalty points redeemed, by store id.",
			ConstLabels: constLabels,
		}, []string{"store_id"}),
		pointsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tillway_points_expired_total",
			Help:        "Loyalty points expired by the maintenance worker.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.shardConnects,
		m.shardEvictions,
		m.modelCacheHits,
		m.modelCacheMiss,
		m.pointsIssued,
		m.pointsRedeemed,
		m.pointsExpired,
	)
	return m
}

// ObserveShardConnect records a successful shard dial.
func (m *RoutingMetrics) ObserveShardConnect(shardID string) {
	if m == nil {
		return
	}
	m.shardConnects.WithLabelValues(shardID).Inc()
}

// ObserveShardEviction records eviction of a dead shard connection.
func (m *RoutingMetrics) ObserveShardEviction(shardID string) {
	if m == nil {
		return
	}
	m.shardEvictions.WithLabelValues(shardID).Inc()
}

// ObserveModelCache records a model-cache lookup outcome.
func (m *RoutingMetrics) ObserveModelCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.modelCacheHits.Inc()
		return
	}
	m.modelCacheMiss.Inc()
}

// ObservePointsIssued records issued loyalty points.
func (m *RoutingMetrics) ObservePointsIssued(storeID string, points int64) {
	if m == nil {
		return
	}
	m.pointsIssued.WithLabelValues(storeID).Add(float64(points))
}

// ObservePointsRedeemed records redeemed loyalty points.
func (m *RoutingMetrics) ObservePointsRedeemed(storeID string, points int64) {
	if m == nil {
		return
	}
	m.pointsRedeemed.WithLabelValues(storeID).Add(float64(points))
}

// ObservePointsExpired records expired loyalty points.
func (m *RoutingMetrics) ObservePointsExpired(points int64) {
	if m == nil {
		return
	}
	m.pointsExpired.Add(float64(points))
}
