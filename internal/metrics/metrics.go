// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 検索パイプラインの各層から利用する。
type MetricsCollector interface {
	RecordSearch(family string, fanout int)
	RecordFetchFailure(family string)
	RecordFetchLatency(duration time.Duration)
	RecordMalformedNotes(count int)
	RecordUserCacheHit(count int)
	RecordUserCacheMiss(count int)
	RecordCommentPosted()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searches       *prometheus.CounterVec
	fanoutSize     prometheus.Histogram
	fetchFail      *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	malformedNotes prometheus.Counter
	userCacheHit   prometheus.Counter
	userCacheMiss  prometheus.Counter
	commentsPosted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notescope_searches_total",
			Help: "エンドポイント系統別の検索実行回数",
		}, []string{"family"}),
		fanoutSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notescope_fanout_requests",
			Help:    "1検索あたりのサブリクエスト数",
			Buckets: []float64{1, 4, 16},
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notescope_fetch_fail_total",
			Help: "エンドポイント系統別のサブリクエスト失敗数",
		}, []string{"family"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notescope_search_latency_seconds",
			Help:    "検索全体（フェッチ+正規化）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		malformedNotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescope_malformed_notes_total",
			Help: "スキップされた不正ノートフィーチャの合計数",
		}),
		userCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescope_user_cache_hit_total",
			Help: "ユーザーキャッシュのヒット数",
		}),
		userCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescope_user_cache_miss_total",
			Help: "ユーザーキャッシュのミス数",
		}),
		commentsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescope_comments_posted_total",
			Help: "投稿されたフォローアップコメントの合計数",
		}),
	}

	reg.MustRegister(
		c.searches,
		c.fanoutSize,
		c.fetchFail,
		c.fetchLatency,
		c.malformedNotes,
		c.userCacheHit,
		c.userCacheMiss,
		c.commentsPosted,
	)

	return c
}

// RecordSearch は検索の実行とそのファンアウト数を記録する。
func (c *Collector) RecordSearch(family string, fanout int) {
	c.searches.WithLabelValues(family).Inc()
	c.fanoutSize.Observe(float64(fanout))
}

// RecordFetchFailure はサブリクエストの失敗を記録する。
func (c *Collector) RecordFetchFailure(family string) {
	c.fetchFail.WithLabelValues(family).Inc()
}

// RecordFetchLatency は検索のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordMalformedNotes はスキップされた不正ノートの件数を記録する。
func (c *Collector) RecordMalformedNotes(count int) {
	c.malformedNotes.Add(float64(count))
}

// RecordUserCacheHit はユーザーキャッシュのヒットを記録する。
func (c *Collector) RecordUserCacheHit(count int) {
	c.userCacheHit.Add(float64(count))
}

// RecordUserCacheMiss はユーザーキャッシュのミスを記録する。
func (c *Collector) RecordUserCacheMiss(count int) {
	c.userCacheMiss.Add(float64(count))
}

// RecordCommentPosted はフォローアップコメントの投稿を記録する。
func (c *Collector) RecordCommentPosted() {
	c.commentsPosted.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
