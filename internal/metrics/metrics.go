// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ゲート判定ラベル
const (
	DecisionAsset        = "asset"
	DecisionPass         = "pass"
	DecisionHydrate      = "hydrate"
	DecisionRedirect     = "redirect"
	DecisionCanonical    = "canonical"
	DecisionUnauthorized = "unauthorized"
	DecisionForbidden    = "forbidden"
	DecisionOnboarding   = "onboarding_required"
	DecisionRateLimited  = "rate_limited"
	DecisionPreflight    = "preflight"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲート、AIルーター、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordGateDecision(decision string)
	RecordOTPRateLimited()
	RecordChatRequest(plan, model string)
	RecordChatUpstreamFailure(reason string)
	RecordChatStream(duration time.Duration)
	RecordSubmission(kind string)
	RecordNotificationFailed(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions        *prometheus.CounterVec
	otpRateLimited       prometheus.Counter
	chatRequests         *prometheus.CounterVec
	chatUpstreamFailures *prometheus.CounterVec
	chatStreamSeconds    prometheus.Histogram
	submissions          *prometheus.CounterVec
	notificationsFailed  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creator_gate_decisions_total",
			Help: "アクセスゲートの判定結果別リクエスト数",
		}, []string{"decision"}),
		otpRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creator_otp_rate_limited_total",
			Help: "OTPエンドポイントでレート制限されたリクエスト数",
		}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creator_chat_requests_total",
			Help: "プラン・モデル別のチャットリクエスト数",
		}, []string{"plan", "model"}),
		chatUpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creator_chat_upstream_failures_total",
			Help: "フォールバックストリームに切り替えた上流失敗の数",
		}, []string{"reason"}),
		chatStreamSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creator_chat_stream_seconds",
			Help:    "チャットストリーム中継の所要時間（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 300},
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creator_submissions_total",
			Help: "種別ごとのフォーム投稿数",
		}, []string{"kind"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creator_notifications_failed_total",
			Help: "送信に失敗した投稿通知メールの数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.otpRateLimited,
		c.chatRequests,
		c.chatUpstreamFailures,
		c.chatStreamSeconds,
		c.submissions,
		c.notificationsFailed,
	)

	return c
}

// RecordGateDecision はゲートの判定を記録する。
func (c *Collector) RecordGateDecision(decision string) {
	c.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordOTPRateLimited はOTPのレート制限超過を記録する。
func (c *Collector) RecordOTPRateLimited() {
	c.otpRateLimited.Inc()
}

// RecordChatRequest は解決後のプランとモデルでチャットリクエストを記録する。
func (c *Collector) RecordChatRequest(plan, model string) {
	c.chatRequests.WithLabelValues(plan, model).Inc()
}

// RecordChatUpstreamFailure は上流呼び出しの失敗を記録する。
func (c *Collector) RecordChatUpstreamFailure(reason string) {
	c.chatUpstreamFailures.WithLabelValues(reason).Inc()
}

// RecordChatStream はストリーム中継の所要時間を記録する。
func (c *Collector) RecordChatStream(duration time.Duration) {
	c.chatStreamSeconds.Observe(duration.Seconds())
}

// RecordSubmission は投稿の受付を記録する。
func (c *Collector) RecordSubmission(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

// RecordNotificationFailed は通知メールの送信失敗を記録する。
func (c *Collector) RecordNotificationFailed(kind string) {
	c.notificationsFailed.WithLabelValues(kind).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordGateDecision(string)        {}
func (Nop) RecordOTPRateLimited()            {}
func (Nop) RecordChatRequest(string, string) {}
func (Nop) RecordChatUpstreamFailure(string) {}
func (Nop) RecordChatStream(time.Duration)   {}
func (Nop) RecordSubmission(string)          {}
func (Nop) RecordNotificationFailed(string)  {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
