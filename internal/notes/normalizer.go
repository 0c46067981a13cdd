// Package notes はノートの正規化・可視判定・検索セッション管理を提供する。
package notes

import (
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/notescope/internal/model"
	"github.com/hitoshi/notescope/internal/osmapi"
	"github.com/hitoshi/notescope/internal/security"
)

// dateLayout はハイフン→スラッシュ正規化後のAPI日付フォーマット。
const dateLayout = "2006/01/02 15:04:05 MST"

// Normalizer は生のAPIフィーチャを正規化されたNoteに変換する。
// 重複コメントの除去と経過期間区分の導出を含む。
type Normalizer struct {
	linkifier *Linkifier
	now       func() time.Time // テストで時刻を固定できるよう差し替え可能
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
func NewNormalizer(sanitizer security.CommentSanitizerService) *Normalizer {
	return &Normalizer{
		linkifier: NewLinkifier(sanitizer),
		now:       time.Now,
	}
}

// Parse は生のノートフィーチャを正規化されたNoteに変換する。
// コメントを1件も持たないフィーチャは既知の上流データ不整合として
// MalformedNoteエラーで拒否する。
//
// 生コメントリストを新しい順に走査しながら正規化済みの古い順の列を構築する:
//  1. authorフィールドが存在しないコメントを匿名として分類する
//  2. 日付文字列を正規化する（ハイフン→スラッシュのセパレータ修正）
//  3. コメントごとに独立して経過期間区分を算出する
//  4. コメントテキストをリンク化する（エスケープ → URL検出 → 画像URL書き換え）
//  5. 同一ノート内で既出のテキストとバイト単位で一致する空でないコメントを除去する
//  6. 結果のコメント列が空ならノート全体を拒否する
func (n *Normalizer) Parse(feature osmapi.NoteFeature) (*model.Note, error) {
	props := feature.Properties
	now := n.now()

	seen := make(map[string]bool)
	reversed := make([]model.Comment, 0, len(props.Comments))

	for i := len(props.Comments) - 1; i >= 0; i-- {
		raw := props.Comments[i]

		// 既出テキストとの重複除去。上流が同一エントリを複数回返すことがある
		if raw.Text != "" && seen[raw.Text] {
			continue
		}
		if raw.Text != "" {
			seen[raw.Text] = true
		}

		comment := model.Comment{
			Date:   parseDate(raw.Date),
			Action: model.CommentAction(raw.Action),
			Text:   raw.Text,
		}

		// authorフィールドがないコメントは匿名。匿名コメントは
		// 著者IDを持たず、プレースホルダ名で表示する
		if raw.User == "" && raw.UID == nil {
			comment.Anonymous = true
			comment.User = model.AnonymousDisplayName
		} else {
			comment.User = raw.User
			comment.UID = raw.UID
		}

		comment.Age = model.AgeBucketOf(comment.Date, now)
		comment.HTML, comment.Images = n.linkifier.Linkify(raw.Text)

		reversed = append(reversed, comment)
	}

	if len(reversed) == 0 {
		return nil, model.NewMalformedNoteError(props.ID)
	}

	// 走査は新しい順だったため、古い順に並べ直す
	comments := make([]model.Comment, len(reversed))
	for i, c := range reversed {
		comments[len(reversed)-1-i] = c
	}

	note := &model.Note{
		ID:       props.ID,
		Status:   model.NoteStatus(props.Status),
		Comments: comments,
	}
	if len(feature.Geometry.Coordinates) >= 2 {
		note.Lon = feature.Geometry.Coordinates[0]
		note.Lat = feature.Geometry.Coordinates[1]
	}

	first := comments[0]
	last := comments[len(comments)-1]
	note.CreatedAt = first.Date
	note.UpdatedAt = last.Date
	note.User = first.User
	note.UID = first.UID
	note.Anonymous = first.Anonymous
	note.Age = model.AgeBucketOf(first.Date, now)

	return note, nil
}

// ParseBatch は複数フィーチャを正規化し、IDで重複排除したNote集合を返す。
// 不正なフィーチャはログに記録してスキップし、残りのバッチは処理を継続する。
// 戻り値の2番目はスキップされた不正フィーチャの件数。
func (n *Normalizer) ParseBatch(features []osmapi.NoteFeature, logger *slog.Logger) ([]*model.Note, int) {
	byID := make(map[int64]bool, len(features))
	notes := make([]*model.Note, 0, len(features))
	malformed := 0

	for _, feature := range features {
		if byID[feature.Properties.ID] {
			continue
		}

		note, err := n.Parse(feature)
		if err != nil {
			malformed++
			logger.Warn("不正なノートフィーチャをスキップしました",
				slog.Int64("note_id", feature.Properties.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		byID[note.ID] = true
		notes = append(notes, note)
	}

	return notes, malformed
}

// parseDate はAPIの日付文字列を正規化してパースする。
// セパレータをハイフンからスラッシュに統一してからパースする
// （由来はブラウザ実装間の日付パース差異の回避だが、フォーマットの
// 安定性のためサーバー側でも同じ正規化を維持する）。
// パースできない場合はゼロ値を返す。
func parseDate(s string) time.Time {
	normalized := strings.Replace(strings.TrimSpace(s), "-", "/", 2)
	if t, err := time.Parse(dateLayout, normalized); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return t
	}
	return time.Time{}
}
