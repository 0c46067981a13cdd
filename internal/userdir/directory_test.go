package userdir

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/notescope/internal/model"
)

// --- モック定義 ---

// mockLookup はUserLookupのモック実装。
type mockLookup struct {
	calls       [][]int64
	lookupUsers func(ctx context.Context, ids []int64) ([]model.UserRecord, error)
}

func (m *mockLookup) LookupUsers(ctx context.Context, ids []int64) ([]model.UserRecord, error) {
	m.calls = append(m.calls, ids)
	if m.lookupUsers != nil {
		return m.lookupUsers(ctx, ids)
	}
	records := make([]model.UserRecord, len(ids))
	for i, id := range ids {
		records[i] = model.UserRecord{ID: id, DisplayName: "user", AccountCreated: time.Now()}
	}
	return records, nil
}

// mockCacheRecorder はCacheRecorderのモック実装。
type mockCacheRecorder struct {
	hits   int
	misses int
}

func (m *mockCacheRecorder) RecordUserCacheHit(count int)  { m.hits += count }
func (m *mockCacheRecorder) RecordUserCacheMiss(count int) { m.misses += count }

func newTestDirectory(lookup *mockLookup) (*Directory, *mockCacheRecorder) {
	var buf bytes.Buffer
	rec := &mockCacheRecorder{}
	return NewDirectory(lookup, rec, slog.New(slog.NewJSONHandler(&buf, nil))), rec
}

func TestLoad_ChunksBy500(t *testing.T) {
	lookup := &mockLookup{}
	dir, _ := newTestDirectory(lookup)

	// 501件のIDは500件+1件の2リクエストに分割される
	ids := make([]int64, 501)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	if err := dir.Load(context.Background(), ids); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if len(lookup.calls) != 2 {
		t.Fatalf("リクエスト回数 = %d, want 2", len(lookup.calls))
	}
	if len(lookup.calls[0]) != 500 {
		t.Errorf("1回目のチャンクサイズ = %d, want 500", len(lookup.calls[0]))
	}
	if len(lookup.calls[1]) != 1 {
		t.Errorf("2回目のチャンクサイズ = %d, want 1", len(lookup.calls[1]))
	}
}

func TestLoad_SkipsCachedIDs(t *testing.T) {
	lookup := &mockLookup{}
	dir, rec := newTestDirectory(lookup)

	if err := dir.Load(context.Background(), []int64{1, 2, 3}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if err := dir.Load(context.Background(), []int64{2, 3, 4}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if len(lookup.calls) != 2 {
		t.Fatalf("リクエスト回数 = %d, want 2", len(lookup.calls))
	}
	// 2回目はキャッシュ済みの2,3を除いた4のみ
	if len(lookup.calls[1]) != 1 || lookup.calls[1][0] != 4 {
		t.Errorf("2回目のリクエストID = %v, want [4]", lookup.calls[1])
	}
	if rec.hits != 2 {
		t.Errorf("キャッシュヒット数 = %d, want 2", rec.hits)
	}
}

func TestLoad_AllCachedIssuesNoRequest(t *testing.T) {
	lookup := &mockLookup{}
	dir, _ := newTestDirectory(lookup)

	if err := dir.Load(context.Background(), []int64{1, 2}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if err := dir.Load(context.Background(), []int64{1, 2}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if len(lookup.calls) != 1 {
		t.Errorf("全件キャッシュ済みでもリクエストが発行された: %d 回", len(lookup.calls))
	}
}

func TestLoad_DeduplicatesAndSkipsInvalidIDs(t *testing.T) {
	lookup := &mockLookup{}
	dir, _ := newTestDirectory(lookup)

	if err := dir.Load(context.Background(), []int64{5, 5, 0, -1, 6}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if len(lookup.calls) != 1 {
		t.Fatalf("リクエスト回数 = %d, want 1", len(lookup.calls))
	}
	if len(lookup.calls[0]) != 2 {
		t.Errorf("リクエストID = %v, want 重複・無効ID除外後の2件", lookup.calls[0])
	}
}

func TestLoad_LookupError(t *testing.T) {
	lookup := &mockLookup{
		lookupUsers: func(ctx context.Context, ids []int64) ([]model.UserRecord, error) {
			return nil, errors.New("network error")
		},
	}
	dir, _ := newTestDirectory(lookup)

	if err := dir.Load(context.Background(), []int64{1}); err == nil {
		t.Error("取得失敗時に Load はエラーを返すべき")
	}
}

func TestGet_UnknownIDReturnsFalse(t *testing.T) {
	lookup := &mockLookup{}
	dir, _ := newTestDirectory(lookup)

	if _, ok := dir.Get(999); ok {
		t.Error("未知のIDに対して ok = true が返された")
	}
}

func TestGet_ReturnsCachedRecord(t *testing.T) {
	lookup := &mockLookup{
		lookupUsers: func(ctx context.Context, ids []int64) ([]model.UserRecord, error) {
			return []model.UserRecord{{ID: 7, DisplayName: "mapper1", Changesets: 42}}, nil
		},
	}
	dir, _ := newTestDirectory(lookup)

	if err := dir.Load(context.Background(), []int64{7}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	record, ok := dir.Get(7)
	if !ok {
		t.Fatal("キャッシュ済みIDに対して ok = false")
	}
	if record.DisplayName != "mapper1" || record.Changesets != 42 {
		t.Errorf("record = %+v", record)
	}
}

func TestLoad_MissingRecordIsNotError(t *testing.T) {
	// レスポンスに含まれないID（退会済み等）はエラーにせず単に欠落させる
	lookup := &mockLookup{
		lookupUsers: func(ctx context.Context, ids []int64) ([]model.UserRecord, error) {
			return []model.UserRecord{{ID: ids[0], DisplayName: "only-first"}}, nil
		},
	}
	dir, _ := newTestDirectory(lookup)

	if err := dir.Load(context.Background(), []int64{10, 11}); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if _, ok := dir.Get(10); !ok {
		t.Error("解決済みIDがキャッシュされていない")
	}
	if _, ok := dir.Get(11); ok {
		t.Error("未解決IDがキャッシュされている")
	}
}
