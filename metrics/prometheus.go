// Package metrics 基于 Prometheus 的指标注册与暴露，预定义定价服务的标准指标。
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 定价方法标签取值。
const (
	MethodLattice    = "lattice"
	MethodClosedForm = "closed_form"
)

// 请求状态标签取值。
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics 封装了基于 Prometheus 的指标采集注册表及预定义的定价指标。
type Metrics struct {
	registry *prometheus.Registry // 内部独立的 Prometheus 注册中心

	PricingRequestsTotal *prometheus.CounterVec   // 定价请求总量 (维度: instrument, method, status)
	PricingDuration      *prometheus.HistogramVec // 定价耗时分布 (维度: instrument, method)
	EarlyExerciseNodes   *prometheus.HistogramVec // 美式品种每次定价的提前行权节点数
	CacheRequestsTotal   *prometheus.CounterVec   // 报价缓存访问 (维度: result=hit|miss)
	BuildInfo            *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器。
// 它会自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.PricingRequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_requests_total",
		Help: "Total number of pricing requests",
	}, []string{"instrument", "method", "status"})

	m.PricingDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_duration_seconds",
		Help:    "Pricing latency in seconds",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"instrument", "method"})

	m.EarlyExerciseNodes = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_early_exercise_nodes",
		Help:    "Number of lattice nodes where early exercise beat continuation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"instrument"})

	m.CacheRequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_cache_requests_total",
		Help: "Quote cache lookups by result",
	}, []string{"result"})

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return m
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// ObservePricing 记录一次定价调用的结果与耗时。
func (m *Metrics) ObservePricing(instrument, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.PricingRequestsTotal.WithLabelValues(instrument, method, status).Inc()
	m.PricingDuration.WithLabelValues(instrument, method).Observe(elapsed.Seconds())
}

// ObserveCache 记录一次缓存访问。
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// Registry 返回内部注册中心。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExposeHttp 在指定端口启动一个独立的 HTTP 服务器用于暴露指标数据。
// 返回一个清理函数用于优雅关闭该服务器。
func (m *Metrics) ExposeHttp(port, path string) func() {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
