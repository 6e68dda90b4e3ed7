// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// コールバック処理の結果ラベル。
const (
	CallbackOutcomeLogin         = "login"
	CallbackOutcomeSignupPending = "signup_pending"
	CallbackOutcomeInvalidState  = "invalid_state"
	CallbackOutcomeInvalidGrant  = "invalid_grant"
	CallbackOutcomeError         = "error"
)

// AuthRecorder はメトリクス収集のインターフェース。
// ハンドラー層から利用する。
type AuthRecorder interface {
	RecordLoginStarted()
	RecordCallback(outcome string)
	RecordSignupCompleted()
	RecordSignupRejected(reason string)
	RecordSessionValidation(valid bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginStarted      prometheus.Counter
	callback          *prometheus.CounterVec
	signupCompleted   prometheus.Counter
	signupRejected    *prometheus.CounterVec
	sessionValidation *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_login_started_total",
			Help: "OAuthログイン開始の合計数",
		}),
		callback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_callback_total",
			Help: "OAuthコールバック処理の結果別合計数",
		}, []string{"outcome"}),
		signupCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_signup_completed_total",
			Help: "サインアップ完了の合計数",
		}),
		signupRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_signup_rejected_total",
			Help: "サインアップ拒否の理由別合計数",
		}, []string{"reason"}),
		sessionValidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_session_validation_total",
			Help: "セッション検証の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.loginStarted,
		c.callback,
		c.signupCompleted,
		c.signupRejected,
		c.sessionValidation,
	)

	return c
}

// RecordLoginStarted はOAuthログイン開始を記録する。
func (c *Collector) RecordLoginStarted() {
	c.loginStarted.Inc()
}

// RecordCallback はコールバック処理の結果を記録する。
func (c *Collector) RecordCallback(outcome string) {
	c.callback.WithLabelValues(outcome).Inc()
}

// RecordSignupCompleted はサインアップ完了を記録する。
func (c *Collector) RecordSignupCompleted() {
	c.signupCompleted.Inc()
}

// RecordSignupRejected はサインアップ拒否を理由付きで記録する。
func (c *Collector) RecordSignupRejected(reason string) {
	c.signupRejected.WithLabelValues(reason).Inc()
}

// RecordSessionValidation はセッション検証の結果を記録する。
func (c *Collector) RecordSessionValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	c.sessionValidation.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ AuthRecorder = (*Collector)(nil)
