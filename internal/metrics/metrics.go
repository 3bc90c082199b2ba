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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordGuardDecision(guard, outcome string)
	RecordSessionRefresh(success bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
	RecordAutomationRun(automationKey, status string)
	RecordUnfurl(success bool, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	guardDecisions  *prometheus.CounterVec
	sessionRefresh  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
	automationRuns  *prometheus.CounterVec
	unfurls         *prometheus.CounterVec
	unfurlLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fibi_guard_decisions_total",
			Help: "ルートガードの判定結果ごとの件数",
		}, []string{"guard", "outcome"}),
		sessionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fibi_session_refresh_total",
			Help: "リフレッシュトークンによるセッション更新の件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fibi_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fibi_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		automationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fibi_automation_runs_total",
			Help: "メール自動化の実行件数",
		}, []string{"automation", "status"}),
		unfurls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fibi_unfurl_total",
			Help: "URLメタデータ取得の件数",
		}, []string{"result"}),
		unfurlLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fibi_unfurl_latency_seconds",
			Help:    "URLメタデータ取得のレイテンシ（秒）",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	reg.MustRegister(
		c.guardDecisions,
		c.sessionRefresh,
		c.httpStatus,
		c.requestDuration,
		c.automationRuns,
		c.unfurls,
		c.unfurlLatency,
	)

	return c
}

// RecordGuardDecision はルートガードの判定を記録する。
// outcomeは "allow"、"redirect_login"、"redirect_app"、"unauthorized" のいずれか。
func (c *Collector) RecordGuardDecision(guard, outcome string) {
	c.guardDecisions.WithLabelValues(guard, outcome).Inc()
}

// RecordSessionRefresh はセッション更新の成否を記録する。
func (c *Collector) RecordSessionRefresh(success bool) {
	c.sessionRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// RecordAutomationRun はメール自動化の実行結果を記録する。
func (c *Collector) RecordAutomationRun(automationKey, status string) {
	c.automationRuns.WithLabelValues(automationKey, status).Inc()
}

// RecordUnfurl はメタデータ取得の結果とレイテンシを記録する。
func (c *Collector) RecordUnfurl(success bool, duration time.Duration) {
	c.unfurls.WithLabelValues(resultLabel(success)).Inc()
	c.unfurlLatency.Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
