// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// トランスポート層とセッションコントローラから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordNetworkFailure()
	RecordAuthTransition(to string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requestTotal   *prometheus.CounterVec
	requestLatency prometheus.Histogram
	networkFail    prometheus.Counter
	authTransition *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadspace_request_total",
			Help: "HTTPステータスコード別のAPIリクエスト数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadspace_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		networkFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadspace_network_failure_total",
			Help: "ネットワーク起因で失敗したAPIリクエストの合計数",
		}),
		authTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadspace_auth_transition_total",
			Help: "セッション状態遷移の回数（遷移先別）",
		}, []string{"to"}),
	}

	reg.MustRegister(
		c.requestTotal,
		c.requestLatency,
		c.networkFail,
		c.authTransition,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.requestTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordNetworkFailure はネットワーク起因の失敗を記録する。
func (c *Collector) RecordNetworkFailure() {
	c.networkFail.Inc()
}

// RecordAuthTransition はセッション状態遷移を記録する。
func (c *Collector) RecordAuthTransition(to string) {
	c.authTransition.WithLabelValues(to).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// NopCollector は何も記録しないMetricsCollector。
// メトリクスが不要な構成（テスト等）で使用する。
type NopCollector struct{}

// RecordHTTPStatus は何も行わない。
func (NopCollector) RecordHTTPStatus(statusCode int) {}

// RecordRequestLatency は何も行わない。
func (NopCollector) RecordRequestLatency(duration time.Duration) {}

// RecordNetworkFailure は何も行わない。
func (NopCollector) RecordNetworkFailure() {}

// RecordAuthTransition は何も行わない。
func (NopCollector) RecordAuthTransition(to string) {}

var _ MetricsCollector = NopCollector{}
