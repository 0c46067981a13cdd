// Package userdir はノート作成者メタデータの一括取得とキャッシュを提供する。
package userdir

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/notescope/internal/model"
)

// maxIDsPerRequest は1リクエストあたりの最大ユーザーID数（プラットフォームの上限）。
const maxIDsPerRequest = 500

// UserLookup はユーザーメタデータの一括取得インターフェース。
// テスト時にモックに差し替え可能。
type UserLookup interface {
	LookupUsers(ctx context.Context, ids []int64) ([]model.UserRecord, error)
}

// CacheRecorder はキャッシュのヒット・ミスを記録するインターフェース。
type CacheRecorder interface {
	RecordUserCacheHit(count int)
	RecordUserCacheMiss(count int)
}

// Directory はユーザーIDをキーとする追記専用の共有キャッシュ。
// セッション全体で共有され、エビクションは行わない。
// 既知のIDを重複排除した上で、未知のIDのみを最大500件ずつの
// チャンクに分けて一括取得する。
type Directory struct {
	lookup  UserLookup
	metrics CacheRecorder
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[int64]model.UserRecord
}

// NewDirectory はDirectoryの新しいインスタンスを生成する。
func NewDirectory(lookup UserLookup, metrics CacheRecorder, logger *slog.Logger) *Directory {
	return &Directory{
		lookup:  lookup,
		metrics: metrics,
		logger:  logger,
		cache:   make(map[int64]model.UserRecord),
	}
}

// Load は指定されたID集合のユーザーメタデータをキャッシュに取り込む。
// キャッシュ済みのIDは除外し、残りを最大500件のチャンクに分割して
// チャンクごとに1回の一括取得リクエストを発行する。
func (d *Directory) Load(ctx context.Context, ids []int64) error {
	// キャッシュ済み・重複IDの除外
	seen := make(map[int64]bool, len(ids))
	var missing []int64
	hits := 0

	d.mu.RLock()
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := d.cache[id]; ok {
			hits++
			continue
		}
		missing = append(missing, id)
	}
	d.mu.RUnlock()

	if hits > 0 {
		d.metrics.RecordUserCacheHit(hits)
	}
	if len(missing) == 0 {
		return nil
	}
	d.metrics.RecordUserCacheMiss(len(missing))

	for start := 0; start < len(missing); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]

		records, err := d.lookup.LookupUsers(ctx, chunk)
		if err != nil {
			return fmt.Errorf("ユーザー情報の一括取得に失敗しました: %w", err)
		}

		d.mu.Lock()
		for _, record := range records {
			d.cache[record.ID] = record
		}
		d.mu.Unlock()

		d.logger.Info("ユーザー情報をキャッシュに取り込みました",
			slog.Int("requested", len(chunk)),
			slog.Int("resolved", len(records)),
		)
	}

	return nil
}

// Get はキャッシュからユーザーレコードをO(1)で取得する。
// 未知または無効なIDに対しては2番目の戻り値がfalseになる。
// 呼び出し元は欠落を「未知のユーザー」として扱うこと。エラーではない。
func (d *Directory) Get(id int64) (model.UserRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.cache[id]
	return record, ok
}

// Size はキャッシュ済みレコード数を返す。
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cache)
}
