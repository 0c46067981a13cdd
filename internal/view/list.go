package view

import (
	"time"

	"github.com/hitoshi/notescope/internal/model"
)

// ListRenderer はノートコレクションをカード配列に変換する。
// カードにはコメント全文に加えて、ユーザーディレクトリで解決した
// 作成者メタデータ（アカウント作成日・変更セット数・アバター）を含める。
type ListRenderer struct{}

// ListDocument はリストビューのルートオブジェクト。
type ListDocument struct {
	Cards   []ListCard  `json:"cards"`
	Summary ListSummary `json:"summary"`
}

// ListCard は1ノートに対応するカード。
type ListCard struct {
	ID        int64         `json:"id"`
	Status    string        `json:"status"`
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Age       string        `json:"age"`
	Color     string        `json:"color"`
	Author    *ListAuthor   `json:"author,omitempty"`
	Anonymous bool          `json:"anonymous"`
	Comments  []listComment `json:"comments"`
}

// ListAuthor はカードに表示する作成者メタデータ。
// ユーザーディレクトリで解決できなかった場合はIDと表示名のみになる。
type ListAuthor struct {
	UID            int64      `json:"uid"`
	DisplayName    string     `json:"display_name"`
	AccountCreated *time.Time `json:"account_created,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Changesets     int        `json:"changesets,omitempty"`
}

// listComment はカード内の1コメント。
type listComment struct {
	User      string    `json:"user"`
	Anonymous bool      `json:"anonymous"`
	Date      time.Time `json:"date"`
	Action    string    `json:"action"`
	Text      string    `json:"text"`
	HTML      string    `json:"html"`
	Images    []string  `json:"images,omitempty"`
	Age       string    `json:"age"`
	Color     string    `json:"color"`
}

// ListSummary はリストビューのヘッダに表示する集計。
type ListSummary struct {
	Amount             int       `json:"amount"`
	AverageCreatedDate time.Time `json:"average_created_date"`
}

// Name はビューの識別名を返す。
func (r *ListRenderer) Name() string { return NameList }

// Render はノートコレクションをカード配列に変換する。
func (r *ListRenderer) Render(notes []*model.Note, summary model.Summary, users UserResolver) any {
	cards := make([]ListCard, 0, len(notes))
	for _, note := range notes {
		comments := make([]listComment, 0, len(note.Comments))
		for _, c := range note.Comments {
			comments = append(comments, listComment{
				User:      c.User,
				Anonymous: c.Anonymous,
				Date:      c.Date,
				Action:    string(c.Action),
				Text:      c.Text,
				HTML:      c.HTML,
				Images:    c.Images,
				Age:       string(c.Age),
				Color:     c.Age.Color(),
			})
		}

		cards = append(cards, ListCard{
			ID:        note.ID,
			Status:    string(note.Status),
			Lat:       note.Lat,
			Lon:       note.Lon,
			CreatedAt: note.CreatedAt,
			UpdatedAt: note.UpdatedAt,
			Age:       string(note.Age),
			Color:     note.Age.Color(),
			Author:    resolveAuthor(note, users),
			Anonymous: note.Anonymous,
			Comments:  comments,
		})
	}

	return &ListDocument{
		Cards: cards,
		Summary: ListSummary{
			Amount:             summary.Amount,
			AverageCreatedDate: summary.AverageCreatedDate,
		},
	}
}

// resolveAuthor はノート作成者のメタデータをユーザーディレクトリから解決する。
// 匿名ノートはnilを返す。ディレクトリに未登録のIDはIDと表示名のみのカードになる。
func resolveAuthor(note *model.Note, users UserResolver) *ListAuthor {
	if note.Anonymous || note.UID == nil {
		return nil
	}

	author := &ListAuthor{
		UID:         *note.UID,
		DisplayName: note.User,
	}

	record, ok := users.Get(*note.UID)
	if !ok {
		return author
	}

	author.DisplayName = record.DisplayName
	author.AvatarURL = record.AvatarURL
	author.Changesets = record.Changesets
	if !record.AccountCreated.IsZero() {
		created := record.AccountCreated
		author.AccountCreated = &created
	}
	return author
}
