package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notescope/internal/model"
	"github.com/hitoshi/notescope/internal/osmapi"
)

// NotesFetcher はプラン中の1リクエストを発行するインターフェース。
// テスト時にモックに差し替え可能。
type NotesFetcher interface {
	FetchNotes(ctx context.Context, desc model.RequestDescriptor) ([]osmapi.NoteFeature, error)
}

// NoteParser は生フィーチャの集合を正規化・重複排除するインターフェース。
type NoteParser interface {
	ParseBatch(features []osmapi.NoteFeature, logger *slog.Logger) ([]*model.Note, int)
}

// MetricsRecorder は実行メトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordSearch(family string, fanout int)
	RecordFetchFailure(family string)
	RecordFetchLatency(duration time.Duration)
	RecordMalformedNotes(count int)
}

// Executor はQueryPlanのリクエストを発行し、結果を集約する。
//
// ファンアウトプランの各サブリクエストは並行に発行される。結果は順序非依存で
// マージされ、正規化時にノートIDで重複排除されるため、完了順序は正しさに影響しない。
// 個々のサブリクエストの失敗はログに記録され、そのレグの寄与が空になるだけで
// プラン全体は継続する（部分失敗への耐性）。
//
// 同時に実行される検索は常に1つのみ。新しい検索の開始または明示的なキャンセルは
// 実行中のネットワーク操作を中断し、先行する保留中の結果を破棄として解決する。
// 破棄の判定には世代トークンを使用し、追い越された操作の完了が新しい操作の
// 所有する状態を壊せないことを保証する。
type Executor struct {
	fetcher NotesFetcher
	parser  NoteParser
	metrics MetricsRecorder
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	token   string // 実行中の検索の世代トークン
	running bool
}

// NewExecutor はExecutorの新しいインスタンスを生成する。
func NewExecutor(fetcher NotesFetcher, parser NoteParser, metrics MetricsRecorder, logger *slog.Logger) *Executor {
	return &Executor{
		fetcher: fetcher,
		parser:  parser,
		metrics: metrics,
		logger:  logger,
	}
}

// Execute はプランのリクエストを発行し、正規化・重複排除済みのNote集合を返す。
// 実行中の先行検索があれば中断して引き継ぐ。
// キャンセルまたは追い越しにより破棄された場合はmodel.ErrCancelledを返す。
// 呼び出し元はこれをエラーではなく空結果として扱うこと。
func (e *Executor) Execute(ctx context.Context, plan model.QueryPlan) ([]*model.Note, error) {
	start := time.Now()

	e.mu.Lock()
	if e.cancel != nil {
		// 先行する検索を追い越す
		e.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()
	e.cancel = cancel
	e.token = token
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		// 自分が最新の世代である場合のみ状態を畳む。
		// 追い越された古い実行が新しい実行の状態を壊してはならない
		if e.token == token {
			e.running = false
			e.cancel = nil
		}
		e.mu.Unlock()
		cancel()
	}()

	e.metrics.RecordSearch(string(plan.Family), len(plan.Requests))

	features := e.fetchAll(ctx, plan)

	if ctx.Err() != nil {
		e.logger.Info("検索がキャンセルされました",
			slog.String("family", string(plan.Family)),
			slog.Int("requests", len(plan.Requests)),
		)
		return nil, model.ErrCancelled
	}

	notes, malformed := e.parser.ParseBatch(features, e.logger)
	if malformed > 0 {
		e.metrics.RecordMalformedNotes(malformed)
	}

	// 結果を返す直前にも世代を確認する。正規化中に追い越された場合、
	// この結果は既に新しい検索の所有する表示状態に適用されてはならない
	e.mu.Lock()
	superseded := e.token != token
	e.mu.Unlock()
	if superseded {
		return nil, model.ErrCancelled
	}

	e.metrics.RecordFetchLatency(time.Since(start))
	e.logger.Info("検索が完了しました",
		slog.String("family", string(plan.Family)),
		slog.Int("requests", len(plan.Requests)),
		slog.Int("raw_features", len(features)),
		slog.Int("notes", len(notes)),
		slog.Int("malformed", malformed),
	)

	return notes, nil
}

// fetchAll はプランの全リクエストを並行に発行し、生フィーチャを連結する。
func (e *Executor) fetchAll(ctx context.Context, plan model.QueryPlan) []osmapi.NoteFeature {
	if len(plan.Requests) == 1 {
		features, err := e.fetcher.FetchNotes(ctx, plan.Requests[0])
		if err != nil {
			e.logFetchFailure(ctx, plan.Requests[0], err)
			return nil
		}
		return features
	}

	var (
		mu       sync.Mutex
		combined []osmapi.NoteFeature
		wg       sync.WaitGroup
	)

	for _, desc := range plan.Requests {
		wg.Add(1)
		go func(desc model.RequestDescriptor) {
			defer wg.Done()

			features, err := e.fetcher.FetchNotes(ctx, desc)
			if err != nil {
				// 1レグの失敗はそのレグの寄与が空になるだけで、残りはマージを継続する
				e.logFetchFailure(ctx, desc, err)
				return
			}

			mu.Lock()
			combined = append(combined, features...)
			mu.Unlock()
		}(desc)
	}

	wg.Wait()
	return combined
}

// logFetchFailure はサブリクエストの失敗を記録する。
// キャンセルに起因する失敗はエラーとして扱わない。
func (e *Executor) logFetchFailure(ctx context.Context, desc model.RequestDescriptor, err error) {
	if ctx.Err() != nil {
		return
	}
	e.metrics.RecordFetchFailure(string(desc.Family))
	e.logger.Error("サブリクエストの取得に失敗しました",
		slog.String("family", string(desc.Family)),
		slog.String("error", err.Error()),
	)
}

// Cancel は実行中の検索を明示的にキャンセルする。
// 実行中の検索がない場合は何もしない。
func (e *Executor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.running = false
	e.token = ""
}

// IsRunning は中断可能な検索が現在実行中かどうかを返す。
func (e *Executor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
