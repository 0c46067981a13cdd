// Package model はドメインモデルを定義する。
package model

import "time"

// UserRecord はノート作成者のメタデータを表す。
// UserDirectoryが数値IDをキーにセッション全体で共有キャッシュする。
// キャッシュは追記専用で、エビクションは行わない。
type UserRecord struct {
	ID             int64     // プラットフォーム上のユーザーID
	DisplayName    string    // 表示名
	AccountCreated time.Time // アカウント作成日
	AvatarURL      string    // アバター画像URL。未設定の場合は空文字列
	Changesets     int       // 変更セット数
}

// Preference はクライアントごとのユーザー設定キー/値ペアを表す。
// 最終ビューポート、テーマ、機能トグルなどの永続化に使用する。
type Preference struct {
	ID        string    // レコードID（UUID）
	ClientID  string    // クライアント識別子
	Key       string    // 設定キー
	Value     string    // 設定値（JSON文字列も可）
	UpdatedAt time.Time // 最終更新日時
}
