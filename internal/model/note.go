// Package model はドメインモデルを定義する。
package model

import (
	"math"
	"time"
)

// AnonymousDisplayName は匿名コメントの投稿者に表示するプレースホルダ名。
const AnonymousDisplayName = "匿名ユーザー"

// NoteStatus はノートの状態を表す。
type NoteStatus string

const (
	// NoteStatusOpen は未解決のノートを表す。
	NoteStatusOpen NoteStatus = "open"
	// NoteStatusClosed は解決済みのノートを表す。
	NoteStatusClosed NoteStatus = "closed"
)

// CommentAction はコメントに付随するアクション種別を表す。
type CommentAction string

const (
	// ActionOpened はノートの新規作成を表す。
	ActionOpened CommentAction = "opened"
	// ActionClosed はノートの解決を表す。
	ActionClosed CommentAction = "closed"
	// ActionReopened はノートの再オープンを表す。
	ActionReopened CommentAction = "reopened"
	// ActionCommented は通常のコメント追加を表す。
	ActionCommented CommentAction = "commented"
	// ActionHidden はモデレーターによる非表示化を表す。
	ActionHidden CommentAction = "hidden"
)

// Comment はノートのディスカッション中の1エントリを表す。
// HTMLとImagesはリンク化・サニタイズ処理の結果が格納される。
type Comment struct {
	User      string        // 表示名。匿名の場合はAnonymousDisplayName
	UID       *int64        // 投稿者ID。匿名の場合はnil
	Anonymous bool          // 投稿者情報が存在しない場合にtrue
	Date      time.Time     // 投稿日時
	Action    CommentAction // opened/closed/reopened/commented/hidden
	Text      string        // 元のプレーンテキスト
	HTML      string        // サニタイズ済みのリンク化HTML
	Images    []string      // コメント中に検出された埋め込み画像URL
	Age       AgeBucket     // 投稿日時から導出した経過期間区分
}

// Note は位置情報付きの課題レポートを表す。
// IDはリモートプラットフォームが割り当てる安定したグローバル一意の整数。
// Commentsは作成日時の昇順（先頭が最古）で保持され、必ず1件以上存在する。
// 構築後は変更されない。コメント投稿後の更新は同一IDの新しいNoteへの丸ごと差し替えで行う。
type Note struct {
	ID       int64
	Status   NoteStatus
	Lat      float64
	Lon      float64
	Comments []Comment

	// 以下は先頭・末尾コメントから導出される属性。正規化時に確定する。
	CreatedAt time.Time // 最初のコメントの日時
	UpdatedAt time.Time // 最後のコメントの日時
	User      string    // 作成者の表示名
	UID       *int64    // 作成者ID。匿名の場合はnil
	Anonymous bool      // 匿名ユーザーによって作成された場合にtrue
	Age       AgeBucket // 作成日時から導出した経過期間区分
}

// AgeBucket は日時からの経過期間を離散化した区分を表す。
// ノートとコメントの双方の表示色分けに使用する。
type AgeBucket string

const (
	// AgeVeryRecent は24時間以内を表す。
	AgeVeryRecent AgeBucket = "very-recent"
	// AgeRecent は31日以内を表す。
	AgeRecent AgeBucket = "recent"
	// AgeModerate は6ヶ月未満を表す。
	AgeModerate AgeBucket = "moderate"
	// AgeAging は12ヶ月未満を表す。
	AgeAging AgeBucket = "aging"
	// AgeOld は1年前後を表す。
	AgeOld AgeBucket = "old"
	// AgeVeryOld は1年を大きく超えるものを表す。
	AgeVeryOld AgeBucket = "very-old"
)

// AgeBucketOf は日時nowからの経過期間に応じたAgeBucketを返す。
// 月数はround(時間/24/30)、年数はround(時間/24/365.25)で算出する（切り捨てではなく四捨五入）。
func AgeBucketOf(date, now time.Time) AgeBucket {
	hours := math.Abs(now.Sub(date).Hours())
	days := hours / 24
	months := math.Round(days / 30)
	years := math.Round(days / 365.25)

	switch {
	case hours <= 24:
		return AgeVeryRecent
	case days <= 31:
		return AgeRecent
	case months < 6:
		return AgeModerate
	case months < 12:
		return AgeAging
	case years <= 1:
		return AgeOld
	default:
		return AgeVeryOld
	}
}

// Color はAgeBucketに対応する表示色を返す。
// ビューでのマーカー・カードの色分けに使用する。
func (a AgeBucket) Color() string {
	switch a {
	case AgeVeryRecent:
		return "#19a716"
	case AgeRecent:
		return "#82cd13"
	case AgeModerate:
		return "#eac500"
	case AgeAging:
		return "#ea9a00"
	case AgeOld:
		return "#e05b26"
	default:
		return "#d32222"
	}
}

// Summary はノートコレクションの集計情報を表す。
// ビュー層に表示件数と平均作成日を提供する。
type Summary struct {
	Amount             int       // 表示対象のノート件数
	AverageCreatedDate time.Time // 作成日の平均。件数0の場合はゼロ値
}
