// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フェッチャー・配信ハブ・ワーカーから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(source string)
	RecordFetchFailure(source string, reason string)
	RecordFetchLatency(source string, duration time.Duration)
	RecordEntriesSkipped(source string, count int)
	RecordItemsInserted(source string, count int)
	RecordItemsUpserted(source string, count int)
	RecordBroadcast(count int)
	SetLiveSessions(count int)
	RecordItemsDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess   *prometheus.CounterVec
	fetchFail      *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	entriesSkipped *prometheus.CounterVec
	itemsInserted  *prometheus.CounterVec
	itemsUpserted  *prometheus.CounterVec
	broadcasts     prometheus.Counter
	liveSessions   prometheus.Gauge
	itemsDeleted   prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswire_fetch_success_total",
			Help: "ソースフェッチ成功の合計数",
		}, []string{"source"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswire_fetch_fail_total",
			Help: "ソースフェッチ失敗の合計数",
		}, []string{"source", "reason"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newswire_fetch_latency_seconds",
			Help:    "ソースフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		entriesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswire_entries_skipped_total",
			Help: "正規化に失敗してスキップされたエントリの合計数",
		}, []string{"source"}),
		itemsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswire_items_inserted_total",
			Help: "初回挿入された記事の合計数",
		}, []string{"source"}),
		itemsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newswire_items_upserted_total",
			Help: "UPSERTされた記事の合計数（挿入・更新を含む）",
		}, []string{"source"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswire_broadcast_events_total",
			Help: "リアルタイム配信された新着イベントの合計数",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newswire_live_sessions",
			Help: "接続中のリアルタイムセッション数",
		}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newswire_items_deleted_total",
			Help: "保持期間切れで削除された記事の合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.entriesSkipped,
		c.itemsInserted,
		c.itemsUpserted,
		c.broadcasts,
		c.liveSessions,
		c.itemsDeleted,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess(source string) {
	c.fetchSuccess.WithLabelValues(source).Inc()
}

// RecordFetchFailure はフェッチ失敗を理由付きで記録する。
func (c *Collector) RecordFetchFailure(source string, reason string) {
	c.fetchFail.WithLabelValues(source, reason).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(source string, duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordEntriesSkipped は正規化失敗でスキップされたエントリ数を記録する。
func (c *Collector) RecordEntriesSkipped(source string, count int) {
	c.entriesSkipped.WithLabelValues(source).Add(float64(count))
}

// RecordItemsInserted は初回挿入された記事数を記録する。
func (c *Collector) RecordItemsInserted(source string, count int) {
	c.itemsInserted.WithLabelValues(source).Add(float64(count))
}

// RecordItemsUpserted はUPSERTされた記事数を記録する。
func (c *Collector) RecordItemsUpserted(source string, count int) {
	c.itemsUpserted.WithLabelValues(source).Add(float64(count))
}

// RecordBroadcast は配信された新着イベント数を記録する。
func (c *Collector) RecordBroadcast(count int) {
	c.broadcasts.Add(float64(count))
}

// SetLiveSessions は接続中のセッション数を設定する。
func (c *Collector) SetLiveSessions(count int) {
	c.liveSessions.Set(float64(count))
}

// RecordItemsDeleted は保持期間切れで削除された記事数を記録する。
func (c *Collector) RecordItemsDeleted(count int64) {
	c.itemsDeleted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
