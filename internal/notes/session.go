package notes

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/notescope/internal/model"
	"github.com/hitoshi/notescope/internal/osmapi"
	"github.com/hitoshi/notescope/internal/query"
)

// SearchExecutor は計画済みリクエスト集合の実行インターフェース。
type SearchExecutor interface {
	Execute(ctx context.Context, plan model.QueryPlan) ([]*model.Note, error)
	Cancel()
	IsRunning() bool
}

// UserDirectory は作成者メタデータの一括取得・キャッシュのインターフェース。
type UserDirectory interface {
	Load(ctx context.Context, ids []int64) error
	Get(id int64) (model.UserRecord, bool)
}

// CommentPoster はフォローアップコメント投稿のインターフェース。
type CommentPoster interface {
	CreateComment(ctx context.Context, noteID int64, text, authToken string) (*osmapi.NoteFeature, error)
}

// NoteParser は単一フィーチャの正規化インターフェース。
type NoteParser interface {
	Parse(feature osmapi.NoteFeature) (*model.Note, error)
}

// PostRecorder はコメント投稿のメトリクスを記録するインターフェース。
type PostRecorder interface {
	RecordCommentPosted()
}

// Result は1回の検索の出力を表す。
// Notesは可視判定・ソート・件数制限を適用済みの表示対象ノート。
type Result struct {
	Notes   []*model.Note
	Summary model.Summary
	Family  model.EndpointFamily
}

// Session はアクティブなビューが所有するノートコレクションの管理と
// 検索フロー全体の調停を行う。
//
// フロー: 検索条件+ビューポート → QueryPlanner → QueryExecutor →
// NoteNormalizer（Executor内） → UserDirectory → VisibilityFilter → ビューへ。
//
// コレクションはSessionを唯一の所有者とする共有可変状態で、
// 全ての更新はこの型のミューテックス配下で行う。
// 追い越された検索の結果はExecutorの世代トークンにより適用前に破棄されるため、
// 古い検索の完了が新しい検索の状態を壊すことはない。
type Session struct {
	executor  SearchExecutor
	directory UserDirectory
	poster    CommentPoster
	parser    NoteParser
	metrics   PostRecorder
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	notes map[int64]*model.Note
}

// NewSession はSessionの新しいインスタンスを生成する。
func NewSession(
	executor SearchExecutor,
	directory UserDirectory,
	poster CommentPoster,
	parser NoteParser,
	metrics PostRecorder,
	logger *slog.Logger,
) *Session {
	return &Session{
		executor:  executor,
		directory: directory,
		poster:    poster,
		parser:    parser,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		notes:     make(map[int64]*model.Note),
	}
}

// Search は検索を実行し、表示対象のノートコレクションと集計を返す。
// 新しい検索の開始は実行中の検索を暗黙にキャンセルする。
// キャンセル・追い越しによる破棄は空の結果として返し、エラーにはしない。
func (s *Session) Search(ctx context.Context, spec model.FilterSpec, viewport *model.BoundingBox) (*Result, error) {
	plan := query.BuildPlan(spec, viewport)

	all, err := s.executor.Execute(ctx, plan)
	if err != nil {
		if errors.Is(err, model.ErrCancelled) {
			return &Result{Family: plan.Family}, nil
		}
		return nil, err
	}

	// 参照されている作成者ID集合でユーザーディレクトリを温める。
	// メタデータの取得失敗は表示品質の低下として吸収し、検索自体は成功させる
	if err := s.directory.Load(ctx, referencedUserIDs(all)); err != nil {
		s.logger.Warn("作成者メタデータの取得に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	now := s.now()
	visible := make([]*model.Note, 0, len(all))
	for _, note := range all {
		if IsVisible(note, spec, plan.Family, now) {
			visible = append(visible, note)
		}
	}

	sortNotes(visible, spec)
	if spec.Limit > 0 && len(visible) > spec.Limit {
		visible = visible[:spec.Limit]
	}

	// コレクションを新しい検索結果で丸ごと差し替える
	s.mu.Lock()
	s.notes = make(map[int64]*model.Note, len(all))
	for _, note := range all {
		s.notes[note.ID] = note
	}
	s.mu.Unlock()

	return &Result{
		Notes:   visible,
		Summary: summarize(visible),
		Family:  plan.Family,
	}, nil
}

// PostComment はノートへのフォローアップコメントを投稿し、
// プラットフォームが返す更新後のペイロードで同一IDのノートを丸ごと差し替える。
// コレクションに存在しないIDの指定は呼び出し側のコントラクト違反として
// エラーを伝播させる。
func (s *Session) PostComment(ctx context.Context, noteID int64, text, authToken string) (*model.Note, error) {
	s.mu.RLock()
	_, ok := s.notes[noteID]
	s.mu.RUnlock()
	if !ok {
		return nil, model.NewNoteNotFoundError(noteID)
	}

	feature, err := s.poster.CreateComment(ctx, noteID, text, authToken)
	if err != nil {
		return nil, err
	}

	updated, err := s.parser.Parse(*feature)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.notes[updated.ID] = updated
	s.mu.Unlock()

	s.metrics.RecordCommentPosted()
	s.logger.Info("フォローアップコメントを投稿しました",
		slog.Int64("note_id", noteID),
		slog.Int("comments", len(updated.Comments)),
	)

	return updated, nil
}

// Note はコレクションからノートをIDで取得する。
func (s *Session) Note(id int64) (*model.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	return note, ok
}

// Cancel は実行中の検索を明示的にキャンセルする。
func (s *Session) Cancel() {
	s.executor.Cancel()
}

// IsRunning は検索が現在実行中かどうかを返す。
func (s *Session) IsRunning() bool {
	return s.executor.IsRunning()
}

// referencedUserIDs はノート集合の全コメントが参照する作成者IDを収集する。
func referencedUserIDs(notes []*model.Note) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, note := range notes {
		for _, comment := range note.Comments {
			if comment.UID == nil || seen[*comment.UID] {
				continue
			}
			seen[*comment.UID] = true
			ids = append(ids, *comment.UID)
		}
	}
	return ids
}

// sortNotes はノートを検索条件のソートフィールドと順序で並べ替える。
// default系エンドポイントは順序を保証しないため、クライアント側ソートが必須になる。
// search系もファンアウトマージ後の決定的な順序を保つため常にソートする。
func sortNotes(notes []*model.Note, spec model.FilterSpec) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i].CreatedAt, notes[j].CreatedAt
		if spec.SortBy == model.SortByUpdated {
			a, b = notes[i].UpdatedAt, notes[j].UpdatedAt
		}
		if spec.Order == model.OrderAscending {
			return a.Before(b)
		}
		return a.After(b)
	})
}

// summarize は表示対象ノートの件数と平均作成日を算出する。
func summarize(notes []*model.Note) model.Summary {
	summary := model.Summary{Amount: len(notes)}
	if len(notes) == 0 {
		return summary
	}

	var sum int64
	for _, note := range notes {
		sum += note.CreatedAt.Unix()
	}
	summary.AverageCreatedDate = time.Unix(sum/int64(len(notes)), 0).UTC()
	return summary
}
