// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, notes, network, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMalformedNote = "MALFORMED_NOTE"
	ErrCodeNoteNotFound  = "NOTE_NOT_FOUND"
	ErrCodeUnknownView   = "UNKNOWN_VIEW"
	ErrCodeInvalidFilter = "INVALID_FILTER"
	ErrCodeInvalidBBox   = "INVALID_BBOX"
	ErrCodeSSRFBlocked   = "SSRF_BLOCKED"
	ErrCodeFetchFailed   = "FETCH_FAILED"
	ErrCodePrefNotFound  = "PREF_NOT_FOUND"
	ErrCodeCommentFailed = "COMMENT_FAILED"
)

// ErrCancelled は検索のキャンセル（明示的または後続検索による破棄）を表すセンチネル。
// エラーとしては扱わず、処理中の結果を破棄するだけで正常系として完了させる。
var ErrCancelled = errors.New("query cancelled")

// NewMalformedNoteError はコメントを1件も持たない不正ノートのエラーを生成する。
// 既知の上流データ不整合であり、該当ノートをスキップしてバッチ処理は継続する。
func NewMalformedNoteError(noteID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedNote,
		Message:  fmt.Sprintf("ノート %d にコメントが1件も含まれていません。", noteID),
		Category: "notes",
		Action:   "このノートはスキップされます。対応は不要です。",
	}
}

// NewNoteNotFoundError は指定IDのノートが見つからない場合のエラーを生成する。
// 呼び出し側のコントラクト違反であり、握りつぶさずに伝播させる。
func NewNoteNotFoundError(noteID int64) *APIError {
	return &APIError{
		Code:     ErrCodeNoteNotFound,
		Message:  fmt.Sprintf("指定されたノートが見つかりません: %d", noteID),
		Category: "validation",
		Action:   "ノートIDを確認してください。",
	}
}

// NewUnknownViewError は未知のビュー名が指定された場合のエラーを生成する。
// 呼び出し側のコントラクト違反であり、握りつぶさずに伝播させる。
func NewUnknownViewError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownView,
		Message:  fmt.Sprintf("未知のビュー名です: %s", name),
		Category: "validation",
		Action:   "ビューには map または list を指定してください。",
	}
}

// NewInvalidFilterError は無効な検索条件のエラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効な検索条件です: %s", reason),
		Category: "validation",
		Action:   "検索条件の各パラメータを確認してください。",
	}
}

// NewInvalidBBoxError は無効なビューポート範囲のエラーを生成する。
func NewInvalidBBoxError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBBox,
		Message:  fmt.Sprintf("無効なビューポート範囲です: %s", reason),
		Category: "validation",
		Action:   "bboxパラメータは south ≤ north を満たす度単位の数値で指定してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているAPIエンドポイントのURLを設定してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はリモートAPIからの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("ノートの取得に失敗しました: %s", reason),
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPrefNotFoundError は設定キーが見つからない場合のエラーを生成する。
func NewPrefNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodePrefNotFound,
		Message:  fmt.Sprintf("指定された設定キーが見つかりません: %s", key),
		Category: "validation",
		Action:   "設定キーを確認してください。",
	}
}

// NewCommentFailedError はコメント投稿の失敗エラーを生成する。
func NewCommentFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentFailed,
		Message:  fmt.Sprintf("コメントの投稿に失敗しました: %s", reason),
		Category: "network",
		Action:   "認証トークンと対象ノートの状態を確認し、再度お試しください。",
	}
}
