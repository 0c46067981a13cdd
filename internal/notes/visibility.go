package notes

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hitoshi/notescope/internal/model"
)

// IsVisible はノートが現在の検索条件の下で表示対象かどうかを判定する純粋な述語。
//
// default系（ビューポートエンドポイント）で取得したノートは、そのエンドポイントが
// 全文検索・作成者・期間のサーバー側フィルタに対応していないため、
// クライアント側での再フィルタリングが必要になる:
//   - 期間チェック: ソート対象フィールドに応じてcreated/updatedを開区間で判定。
//     未指定の境界はエポック/現在時刻を既定とする
//   - 全文クエリ: 全コメントテキストの連結に対する大文字小文字・
//     ダイアクリティカルマーク非依存の部分一致
//   - 作成者名の完全一致（匿名onlyモードでない場合のみ適用）
//
// エンドポイント系統に関わらず、状態フィルタと匿名トグル（hide/only）は常に適用する。
func IsVisible(note *model.Note, spec model.FilterSpec, family model.EndpointFamily, now time.Time) bool {
	// 状態フィルタ（全系統共通）
	switch spec.Status {
	case model.StatusFilterOpen:
		if note.Status != model.NoteStatusOpen {
			return false
		}
	case model.StatusFilterClosed:
		if note.Status != model.NoteStatusClosed {
			return false
		}
	}

	// 匿名トグル（全系統共通）
	switch spec.Anonymous {
	case model.AnonymousHide:
		if note.Anonymous {
			return false
		}
	case model.AnonymousOnly:
		if !note.Anonymous {
			return false
		}
	}

	// search系はサーバー側でフィルタ済みのため再フィルタ不要
	if family != model.FamilyDefault {
		return true
	}

	// 期間チェック: ソート対象フィールドの日時を開区間で判定する
	ref := note.CreatedAt
	if spec.SortBy == model.SortByUpdated {
		ref = note.UpdatedAt
	}
	from := time.Unix(0, 0).UTC()
	if spec.From != nil {
		from = *spec.From
	}
	to := now
	if spec.To != nil {
		to = *spec.To
	}
	if !ref.After(from) || !ref.Before(to) {
		return false
	}

	// 全文クエリ: Unicode正規化で結合文字を分解した上での部分一致
	if spec.Query != "" {
		var builder strings.Builder
		for _, c := range note.Comments {
			builder.WriteString(c.Text)
			builder.WriteByte('\n')
		}
		haystack := foldString(builder.String())
		needle := foldString(spec.Query)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}

	// 作成者名の完全一致。匿名onlyモードでは作成者チェックをバイパスする
	if spec.Author != "" && spec.Anonymous != model.AnonymousOnly {
		if note.User != spec.Author {
			return false
		}
	}

	return true
}

// foldString は文字列を小文字化し、ダイアクリティカルマークを除去する。
// NFD分解で結合文字を分離してから除去し、NFCで再構成する。
func foldString(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
