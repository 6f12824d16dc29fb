package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors アプリケーションのPrometheusメトリクス
// nilレシーバでも呼び出せる（メトリクス無効時）
type Collectors struct {
	registry *prometheus.Registry

	aggregateDuration *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	coveringCells     prometheus.Histogram
	coveringCache     *prometheus.CounterVec
	rateLimited       prometheus.Counter
}

// New 専用レジストリにメトリクスを登録して返す
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collectors{
		registry: reg,
		aggregateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "platial_aggregate_query_duration_seconds",
			Help:    "Duration of per-cell aggregate queries by strategy and outcome",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"strategy", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platial_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "platial_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		coveringCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platial_covering_cells",
			Help:    "Number of hex cells covering a requested viewport",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		coveringCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platial_covering_cache_total",
			Help: "Covering-cell cache lookups by result",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platial_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
	}
	reg.MustRegister(c.aggregateDuration, c.httpRequests, c.httpDuration, c.coveringCells, c.coveringCache, c.rateLimited)
	return c
}

// ObserveAggregate 集計クエリの所要時間を記録
func (c *Collectors) ObserveAggregate(kind string, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.aggregateDuration.WithLabelValues(kind, outcome).Observe(elapsed.Seconds())
}

// ObserveHTTP HTTPリクエストを記録
func (c *Collectors) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCoveringCells 表示範囲のセル数を記録
func (c *Collectors) ObserveCoveringCells(n int) {
	if c == nil {
		return
	}
	c.coveringCells.Observe(float64(n))
}

// CoveringCacheHit キャッシュヒットを記録
func (c *Collectors) CoveringCacheHit() {
	if c == nil {
		return
	}
	c.coveringCache.WithLabelValues("hit").Inc()
}

// CoveringCacheMiss キャッシュミスを記録
func (c *Collectors) CoveringCacheMiss() {
	if c == nil {
		return
	}
	c.coveringCache.WithLabelValues("miss").Inc()
}

// RateLimited レート制限による拒否を記録
func (c *Collectors) RateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

// Registry 登録先のレジストリ
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler /metrics 用のHTTPハンドラ
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
