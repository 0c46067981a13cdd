package osmapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/notescope/internal/model"
)

// feedPath はノートアクティビティRSSフィードのパス。
const feedPath = "/api/0.6/notes/feed"

// maxActivityEntries は保持する直近アクティビティの最大件数。
const maxActivityEntries = 100

// ActivityEntry はRSSフィードから取得した直近のノートアクティビティ1件を表す。
type ActivityEntry struct {
	NoteID    int64      // リンクから抽出したノートID。抽出できない場合は0
	Title     string     // フィードエントリのタイトル
	Link      string     // ノートへのリンク
	Published *time.Time // 公開日時。フィードに含まれない場合はnil
}

// FeedWatcher はビューポート範囲のノートアクティビティRSSフィードを
// 定期的にポーリングし、直近のエントリをメモリに保持する。
type FeedWatcher struct {
	parser   *gofeed.Parser
	logger   *slog.Logger
	feedURL  string
	interval time.Duration

	mu      sync.RWMutex
	entries []ActivityEntry
}

// NewFeedWatcher はFeedWatcherの新しいインスタンスを生成する。
// bboxが指定された場合はその範囲のフィードのみを監視する。
func NewFeedWatcher(httpClient *http.Client, logger *slog.Logger, baseURL string, bbox *model.BoundingBox, interval time.Duration) *FeedWatcher {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = userAgent

	feedURL := baseURL + feedPath
	if bbox != nil {
		feedURL = fmt.Sprintf("%s?bbox=%g,%g,%g,%g",
			feedURL, bbox.West, bbox.South, bbox.East, bbox.North)
	}

	return &FeedWatcher{
		parser:   parser,
		logger:   logger,
		feedURL:  feedURL,
		interval: interval,
	}
}

// Start はフィードの監視をティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *FeedWatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("ノートアクティビティフィードの監視を開始しました",
		slog.String("feed_url", w.feedURL),
		slog.Duration("interval", w.interval),
	)

	// 起動直後に1回実行
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("フィード取得に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ノートアクティビティフィードの監視を停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("フィード取得に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はフィードを1回取得し、保持中のエントリを差し替える。
func (w *FeedWatcher) RunOnce(ctx context.Context) error {
	feed, err := w.parser.ParseURLWithContext(w.feedURL, ctx)
	if err != nil {
		return fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	entries := make([]ActivityEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(entries) >= maxActivityEntries {
			break
		}
		entries = append(entries, ActivityEntry{
			NoteID:    parseNoteID(item.Link),
			Title:     item.Title,
			Link:      item.Link,
			Published: item.PublishedParsed,
		})
	}

	w.mu.Lock()
	w.entries = entries
	w.mu.Unlock()

	w.logger.Info("ノートアクティビティフィードを取得しました",
		slog.Int("entries", len(entries)),
	)

	return nil
}

// Recent は保持中の直近アクティビティのコピーを返す。
func (w *FeedWatcher) Recent() []ActivityEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]ActivityEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// parseNoteID はノートへのリンクURLからノートIDを抽出する。
/// 例: https://www.openstreetmap.org/note/12345 → 12345
// 抽出できない場合は0を返す。
func parseNoteID(link string) int64 {
	idx := strings.LastIndex(link, "/note/")
	if idx < 0 {
		return 0
	}
	tail := link[idx+len("/note/"):]
	if end := strings.IndexAny(tail, "#?/"); end >= 0 {
		tail = tail[:end]
	}
	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
