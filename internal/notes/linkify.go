package notes

import (
	"fmt"
	stdhtml "html"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/notescope/internal/security"
)

// urlPattern はコメントテキスト中のURLを検出する。
// HTMLエスケープ後のテキストに適用するため、空白とタグ開始文字で区切る。
var urlPattern = regexp.MustCompile(`https?://[^\s<]+[^\s<.,:;"')\]]`)

// imageProvider は既知の画像ホスティングサービスのURLパターンと
// サムネイル用URL書き換え規則を表す。
type imageProvider struct {
	pattern *regexp.Regexp
	// thumbnail は表示用のサムネイルURLを返す。プロバイダごとに書き換え規則が異なる
	thumbnail func(matches []string) string
}

// imageProviders は既知の画像ホスティングサービスの一覧。
// マッチしたURLはリンクではなくインライン画像として扱う。
var imageProviders = []imageProvider{
	{
		// imgur: 中サイズサムネイル（mサフィックス）に書き換える
		pattern: regexp.MustCompile(`^https://i\.imgur\.com/(\w+)\.(jpe?g|png|gif)$`),
		thumbnail: func(m []string) string {
			return fmt.Sprintf("https://i.imgur.com/%sm.%s", m[1], m[2])
		},
	},
	{
		// Wikimedia Commons: FilePath経由で幅320pxのサムネイルを取得する
		pattern: regexp.MustCompile(`^https://commons\.wikimedia\.org/wiki/File:(\S+)$`),
		thumbnail: func(m []string) string {
			return fmt.Sprintf("https://commons.wikimedia.org/wiki/Special:FilePath/%s?width=320", m[1])
		},
	},
	{
		// Mapillary: 解像度指定部分を320pxに書き換える
		pattern: regexp.MustCompile(`^https://images\.mapillary\.com/(\w+)/thumb-\d+\.jpg$`),
		thumbnail: func(m []string) string {
			return fmt.Sprintf("https://images.mapillary.com/%s/thumb-320.jpg", m[1])
		},
	},
	{
		// westnordost.de (StreetComplete写真): 書き換えなしでそのまま表示する
		pattern: regexp.MustCompile(`^https://westnordost\.de/p/\d+\.jpg$`),
		thumbnail: func(m []string) string {
			return m[0]
		},
	},
	{
		// Framapic: 書き換えなしでそのまま表示する
		pattern: regexp.MustCompile(`^https://framapic\.org/\S+\.(jpe?g|png)$`),
		thumbnail: func(m []string) string {
			return m[0]
		},
	},
}

// Linkifier はコメントテキストをサニタイズ済みのHTMLに変換する。
// 処理順序: HTML特殊文字のエスケープ → URL検出 → 既知の画像ホスティング
// パターンに一致するURLのインライン画像化 → サニタイズ。
// 画像URLはHTMLとは別にリストとしても収集する。
type Linkifier struct {
	sanitizer security.CommentSanitizerService
}

// NewLinkifier はLinkifierの新しいインスタンスを生成する。
func NewLinkifier(sanitizer security.CommentSanitizerService) *Linkifier {
	return &Linkifier{sanitizer: sanitizer}
}

// Linkify はコメントテキストをサニタイズ済みHTMLと埋め込み画像URLのリストに変換する。
func (l *Linkifier) Linkify(text string) (string, []string) {
	if text == "" {
		return "", nil
	}

	// 先にエスケープしてからURLを検出する
	escaped := stdhtml.EscapeString(text)

	replaced := urlPattern.ReplaceAllStringFunc(escaped, func(rawURL string) string {
		for _, provider := range imageProviders {
			if m := provider.pattern.FindStringSubmatch(rawURL); m != nil {
				thumb := provider.thumbnail(m)
				return fmt.Sprintf(`<img src="%s" data-original="%s" alt="">`, thumb, rawURL)
			}
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, rawURL, rawURL)
	})

	sanitized := l.sanitizer.Sanitize(replaced)
	return sanitized, extractImages(sanitized)
}

// extractImages はサニタイズ済みHTMLからimg要素の元画像URLを収集する。
// data-original属性が存在すればそれを、なければsrc属性を採用する。
func extractImages(sanitized string) []string {
	if !strings.Contains(sanitized, "<img") {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(sanitized))
	if err != nil {
		return nil
	}

	var images []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			var src, original string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "src":
					src = attr.Val
				case "data-original":
					original = attr.Val
				}
			}
			if original != "" {
				images = append(images, original)
			} else if src != "" {
				images = append(images, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return images
}
