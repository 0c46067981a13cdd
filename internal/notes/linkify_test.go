package notes

import (
	"strings"
	"testing"

	"github.com/hitoshi/notescope/internal/security"
)

func newTestLinkifier() *Linkifier {
	return NewLinkifier(security.NewCommentSanitizer())
}

func TestLinkify_EmptyText(t *testing.T) {
	l := newTestLinkifier()

	html, images := l.Linkify("")
	if html != "" || images != nil {
		t.Errorf("Linkify(\"\") = (%q, %v), want (\"\", nil)", html, images)
	}
}

func TestLinkify_PlainURLBecomesAnchor(t *testing.T) {
	l := newTestLinkifier()

	html, images := l.Linkify("詳細は https://example.com/page を参照")
	if !strings.Contains(html, `href="https://example.com/page"`) {
		t.Errorf("URLがリンク化されていない: %q", html)
	}
	if !strings.Contains(html, `target="_blank"`) {
		t.Errorf("target=_blank が付与されていない: %q", html)
	}
	if len(images) != 0 {
		t.Errorf("画像が検出された: %v", images)
	}
}

func TestLinkify_TrailingPunctuationExcluded(t *testing.T) {
	l := newTestLinkifier()

	html, _ := l.Linkify("https://example.com/page. 以上です")
	if !strings.Contains(html, `href="https://example.com/page"`) {
		t.Errorf("末尾の句読点がURLに含まれている: %q", html)
	}
}

func TestLinkify_ScriptTagIsEscaped(t *testing.T) {
	l := newTestLinkifier()

	html, _ := l.Linkify(`<script>alert("xss")</script>`)
	if strings.Contains(html, "<script>") {
		t.Errorf("scriptタグが除去されていない: %q", html)
	}
}

func TestLinkify_ImgurThumbnail(t *testing.T) {
	l := newTestLinkifier()

	html, images := l.Linkify("写真: https://i.imgur.com/abc123.jpg")
	if !strings.Contains(html, `src="https://i.imgur.com/abc123m.jpg"`) {
		t.Errorf("imgurのサムネイルURLに書き換えられていない: %q", html)
	}
	if !strings.Contains(html, `data-original="https://i.imgur.com/abc123.jpg"`) {
		t.Errorf("元画像URLがdata-originalに保持されていない: %q", html)
	}
	if len(images) != 1 || images[0] != "https://i.imgur.com/abc123.jpg" {
		t.Errorf("images = %v, want 元画像URLの1件", images)
	}
}

func TestLinkify_WikimediaThumbnail(t *testing.T) {
	l := newTestLinkifier()

	html, images := l.Linkify("https://commons.wikimedia.org/wiki/File:Example.jpg")
	if !strings.Contains(html, "Special:FilePath/Example.jpg?width=320") {
		t.Errorf("Wikimediaのサムネイル経路に書き換えられていない: %q", html)
	}
	if len(images) != 1 {
		t.Errorf("images = %v, want 1件", images)
	}
}

func TestLinkify_MapillaryResolutionRewrite(t *testing.T) {
	l := newTestLinkifier()

	html, _ := l.Linkify("https://images.mapillary.com/key123/thumb-2048.jpg")
	if !strings.Contains(html, "https://images.mapillary.com/key123/thumb-320.jpg") {
		t.Errorf("Mapillaryの解像度が320に書き換えられていない: %q", html)
	}
}

func TestLinkify_StreetCompletePhotoAsIs(t *testing.T) {
	l := newTestLinkifier()

	html, images := l.Linkify("https://westnordost.de/p/12345.jpg")
	if !strings.Contains(html, `src="https://westnordost.de/p/12345.jpg"`) {
		t.Errorf("westnordostのURLが書き換えられずに表示されていない: %q", html)
	}
	if len(images) != 1 {
		t.Errorf("images = %v, want 1件", images)
	}
}

func TestLinkify_MultipleImagesCollected(t *testing.T) {
	l := newTestLinkifier()

	_, images := l.Linkify("https://i.imgur.com/a1.png と https://westnordost.de/p/2.jpg")
	if len(images) != 2 {
		t.Fatalf("images = %v, want 2件", images)
	}
}

func TestLinkify_NonImageHostIsNotInlined(t *testing.T) {
	// 未知のホストの画像風URLはリンクのまま
	l := newTestLinkifier()

	html, images := l.Linkify("https://evil.example.com/fake.jpg")
	if strings.Contains(html, "<img") {
		t.Errorf("未知ホストのURLがインライン画像化された: %q", html)
	}
	if len(images) != 0 {
		t.Errorf("images = %v, want 0件", images)
	}
}
