// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/notescope/internal/model"
)

// PrefRepository はクライアントごとのユーザー設定キー/値ペアの永続化インターフェース。
// 最終ビューポート、テーマ、機能トグルなどの保存に使用する。
type PrefRepository interface {
	// FindByClientAndKey はclient_idとキーで設定を取得する。見つからない場合はnilを返す。
	FindByClientAndKey(ctx context.Context, clientID, key string) (*model.Preference, error)

	// ListByClient はclient_idの全設定をキーの昇順で返す。
	ListByClient(ctx context.Context, clientID string) ([]*model.Preference, error)

	// Upsert は設定を冪等にUPSERTする。
	// 既存のキーは値と更新日時を上書きし、新規のキーは作成する。
	Upsert(ctx context.Context, pref *model.Preference) error

	// DeleteByClientAndKey はclient_idとキーで設定を削除する。
	// 削除対象が存在しない場合はエラーを返す。
	DeleteByClientAndKey(ctx context.Context, clientID, key string) error
}
