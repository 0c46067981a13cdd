// Package security はアプリケーションのセキュリティ機能を提供する。
//
// CommentSanitizerService はノートコメントのリンク化後HTMLをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// リンク化処理が生成するタグのみを通過させる。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// CommentSanitizerService はコメントHTMLのサニタイズ機能のインターフェースを定義する。
// NoteNormalizerのリンク化処理の最終段で使用される。
type CommentSanitizerService interface {
	// Sanitize はコメントのHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（a, img, br）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// imgタグのsrc属性はhttpsスキームのみ許可される。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// commentSanitizer はCommentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type commentSanitizer struct {
	policy *bluemonday.Policy
}

// NewCommentSanitizer はCommentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: a, img, br（リンク化処理が生成するタグのみ）
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - imgのsrc/data-original属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noreferrer noopener" を自動付与
func NewCommentSanitizer() *commentSanitizer {
	p := bluemonday.NewPolicy()

	// 改行のみ属性なしで許可
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	p.AllowElements("br")

	// aタグの設定:
	// - href属性を許可
	// - 相対URLは不許可（コメント中のリンクは常に絶対URL）
	// - target="_blank"を全リンクに強制付与
	// - rel="noreferrer noopener"を強制付与
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	// imgタグの設定:
	// - src属性はhttpsスキームのみ許可（http, javascript, data等は拒否）
	// - data-original属性でサムネイルの元画像URLを保持
	// - alt属性を許可（アクセシビリティ確保）
	p.AllowAttrs("src", "data-original").OnElements("img")
	p.AllowAttrs("alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &commentSanitizer{
		policy: p,
	}
}

// Sanitize はコメントのHTMLをサニタイズして安全なHTMLを返す。
func (s *commentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
