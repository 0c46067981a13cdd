package notes

import (
	"testing"
	"time"

	"github.com/hitoshi/notescope/internal/model"
)

func visNote(status model.NoteStatus, anonymous bool, user string, created, updated time.Time, texts ...string) *model.Note {
	comments := make([]model.Comment, len(texts))
	for i, text := range texts {
		comments[i] = model.Comment{Text: text}
	}
	return &model.Note{
		ID:        1,
		Status:    status,
		Comments:  comments,
		CreatedAt: created,
		UpdatedAt: updated,
		User:      user,
		Anonymous: anonymous,
	}
}

func TestIsVisible_StatusFilter(t *testing.T) {
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	open := visNote(model.NoteStatusOpen, false, "u", created, created, "x")
	closed := visNote(model.NoteStatusClosed, false, "u", created, created, "x")

	spec := model.DefaultFilterSpec()
	spec.Status = model.StatusFilterOpen
	if !IsVisible(open, spec, model.FamilyDefault, now) {
		t.Error("openフィルタでopenノートが非表示")
	}
	if IsVisible(closed, spec, model.FamilyDefault, now) {
		t.Error("openフィルタでclosedノートが表示された")
	}

	spec.Status = model.StatusFilterClosed
	if IsVisible(open, spec, model.FamilyDefault, now) {
		t.Error("closedフィルタでopenノートが表示された")
	}

	spec.Status = model.StatusFilterAll
	if !IsVisible(open, spec, model.FamilyDefault, now) || !IsVisible(closed, spec, model.FamilyDefault, now) {
		t.Error("allフィルタで一部のノートが非表示")
	}
}

func TestIsVisible_AnonymousToggles(t *testing.T) {
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	anon := visNote(model.NoteStatusOpen, true, model.AnonymousDisplayName, created, created, "x")
	named := visNote(model.NoteStatusOpen, false, "mapper1", created, created, "x")

	spec := model.DefaultFilterSpec()
	spec.Anonymous = model.AnonymousHide
	if IsVisible(anon, spec, model.FamilySearch, now) {
		t.Error("hideモードで匿名ノートが表示された")
	}
	if !IsVisible(named, spec, model.FamilySearch, now) {
		t.Error("hideモードで記名ノートが非表示")
	}

	spec.Anonymous = model.AnonymousOnly
	if !IsVisible(anon, spec, model.FamilySearch, now) {
		t.Error("onlyモードで匿名ノートが非表示")
	}
	if IsVisible(named, spec, model.FamilySearch, now) {
		t.Error("onlyモードで記名ノートが表示された")
	}
}

func TestIsVisible_SearchFamilySkipsClientRefiltering(t *testing.T) {
	// search系はサーバー側でフィルタ済みのため、クエリ・期間・作成者の再判定は行わない
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	note := visNote(model.NoteStatusOpen, false, "mapper1", created, created, "ベンチが壊れている")

	spec := model.DefaultFilterSpec()
	spec.Query = "絶対に一致しないクエリ"
	spec.Author = "別人"

	if !IsVisible(note, spec, model.FamilySearch, now) {
		t.Error("search系でクライアント側再フィルタが適用された")
	}
	if IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("default系でクライアント側再フィルタが適用されていない")
	}
}

func TestIsVisible_DateRangeOpenInterval(t *testing.T) {
	now := fixedNow
	from := now.AddDate(0, 0, -10)
	to := now.AddDate(0, 0, -5)

	spec := model.DefaultFilterSpec()
	spec.From = &from
	spec.To = &to

	inside := visNote(model.NoteStatusOpen, false, "u", now.AddDate(0, 0, -7), now, "x")
	if !IsVisible(inside, spec, model.FamilyDefault, now) {
		t.Error("期間内のノートが非表示")
	}

	// 開区間: 境界ちょうどは不一致
	onBoundary := visNote(model.NoteStatusOpen, false, "u", from, now, "x")
	if IsVisible(onBoundary, spec, model.FamilyDefault, now) {
		t.Error("境界ちょうどのノートが表示された（開区間であるべき）")
	}

	before := visNote(model.NoteStatusOpen, false, "u", now.AddDate(0, 0, -20), now, "x")
	if IsVisible(before, spec, model.FamilyDefault, now) {
		t.Error("期間より前のノートが表示された")
	}
}

func TestIsVisible_DateRangeUsesSortField(t *testing.T) {
	// ソート対象がupdatedの場合は更新日時で期間判定する
	now := fixedNow
	from := now.AddDate(0, 0, -3)

	spec := model.DefaultFilterSpec()
	spec.From = &from
	spec.SortBy = model.SortByUpdated

	// 作成は古いが更新は期間内
	note := visNote(model.NoteStatusOpen, false, "u", now.AddDate(0, -6, 0), now.AddDate(0, 0, -1), "x")
	if !IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("更新日時が期間内なのに非表示")
	}

	spec.SortBy = model.SortByCreated
	if IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("作成日時が期間外なのに表示された")
	}
}

func TestIsVisible_QuerySubstringMatch(t *testing.T) {
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	note := visNote(model.NoteStatusOpen, false, "u", created, created, "最初のコメント", "Broken Bench here")

	spec := model.DefaultFilterSpec()

	spec.Query = "broken bench"
	if !IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("大文字小文字を無視した部分一致が効いていない")
	}

	spec.Query = "最初"
	if !IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("別コメントのテキストに対する一致が効いていない")
	}

	spec.Query = "存在しない語"
	if IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("不一致のクエリでノートが表示された")
	}
}

func TestIsVisible_QueryIgnoresDiacritics(t *testing.T) {
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	note := visNote(model.NoteStatusOpen, false, "u", created, created, "Café fermé à Besançon")

	spec := model.DefaultFilterSpec()
	spec.Query = "cafe ferme"
	if !IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("ダイアクリティカルマークを無視した一致が効いていない")
	}
}

func TestIsVisible_AuthorExactMatch(t *testing.T) {
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	note := visNote(model.NoteStatusOpen, false, "mapper1", created, created, "x")

	spec := model.DefaultFilterSpec()
	spec.Author = "mapper1"
	if !IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("作成者名の完全一致が効いていない")
	}

	spec.Author = "mapper"
	if IsVisible(note, spec, model.FamilyDefault, now) {
		t.Error("作成者名の部分一致で表示された（完全一致であるべき）")
	}
}

func TestIsVisible_AnonymousOnlyBypassesAuthorCheck(t *testing.T) {
	// onlyモードでは匿名ノートに作成者名がないため、作成者チェックを適用しない
	now := fixedNow
	created := now.AddDate(0, 0, -1)
	anon := visNote(model.NoteStatusOpen, true, model.AnonymousDisplayName, created, created, "x")

	spec := model.DefaultFilterSpec()
	spec.Anonymous = model.AnonymousOnly
	spec.Author = "mapper1"

	if !IsVisible(anon, spec, model.FamilyDefault, now) {
		t.Error("onlyモードで作成者チェックがバイパスされていない")
	}
}
