// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTP層・認証ゲート・WebSocket層から利用する。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	authFailures     *prometheus.CounterVec
	wsConnects       prometheus.Counter
	wsDisconnects    prometheus.Counter
	wsActive         prometheus.Gauge
	onlineUsers      prometheus.Gauge
	broadcasts       prometheus.Counter
	directDeliveries prometheus.Counter
	messagesSent     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickchat_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickchat_auth_failures_total",
			Help: "認証失敗の種別ごとの合計数",
		}, []string{"kind"}),
		wsConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickchat_ws_connects_total",
			Help: "WebSocketコネクション確立の合計数",
		}),
		wsDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickchat_ws_disconnects_total",
			Help: "WebSocketコネクション切断の合計数",
		}),
		wsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quickchat_ws_active_connections",
			Help: "現在のWebSocketコネクション数",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quickchat_online_users",
			Help: "プレゼンスマップ上のオンラインユーザー数",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickchat_presence_broadcasts_total",
			Help: "オンラインユーザー一覧ブロードキャストの合計数",
		}),
		directDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickchat_direct_deliveries_total",
			Help: "新着メッセージのリアルタイム配信の合計数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickchat_messages_sent_total",
			Help: "送信されたメッセージの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.authFailures,
		c.wsConnects,
		c.wsDisconnects,
		c.wsActive,
		c.onlineUsers,
		c.broadcasts,
		c.directDeliveries,
		c.messagesSent,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAuthFailure は認証失敗を種別付きで記録する。
func (c *Collector) RecordAuthFailure(kind string) {
	c.authFailures.WithLabelValues(kind).Inc()
}

// RecordWSConnect はWebSocketコネクション確立を記録する。
func (c *Collector) RecordWSConnect() {
	c.wsConnects.Inc()
	c.wsActive.Inc()
}

// RecordWSDisconnect はWebSocketコネクション切断を記録する。
func (c *Collector) RecordWSDisconnect() {
	c.wsDisconnects.Inc()
	c.wsActive.Dec()
}

// RecordBroadcast はオンラインユーザー一覧のブロードキャストを記録する。
func (c *Collector) RecordBroadcast() {
	c.broadcasts.Inc()
}

// RecordDirectDelivery は新着メッセージのリアルタイム配信を記録する。
func (c *Collector) RecordDirectDelivery() {
	c.directDeliveries.Inc()
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// SetOnlineUsers は現在のオンラインユーザー数を記録する。
func (c *Collector) SetOnlineUsers(count int) {
	c.onlineUsers.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
