package model

import (
	"encoding/json"
	"time"
)

// StatusFilter は検索対象のノート状態を表す。
type StatusFilter string

const (
	// StatusFilterOpen は未解決のノートのみを対象とする。
	StatusFilterOpen StatusFilter = "open"
	// StatusFilterClosed は解決済みのノートのみを対象とする。
	StatusFilterClosed StatusFilter = "closed"
	// StatusFilterAll は全ノートを対象とする。
	StatusFilterAll StatusFilter = "all"
)

// AnonymousMode は匿名ノートの扱いを表す。
type AnonymousMode string

const (
	// AnonymousInclude は匿名ノートを含めて表示する。
	AnonymousInclude AnonymousMode = "include"
	// AnonymousHide は匿名ノートを非表示にする。
	AnonymousHide AnonymousMode = "hide"
	// AnonymousOnly は匿名ノートのみを表示する。
	AnonymousOnly AnonymousMode = "only"
)

// SortField はソート対象のフィールドを表す。
type SortField string

const (
	// SortByCreated は作成日時でソートする。
	SortByCreated SortField = "created"
	// SortByUpdated は更新日時でソートする。
	SortByUpdated SortField = "updated"
)

// SortOrder はソート順を表す。
type SortOrder string

const (
	// OrderAscending は昇順を表す。
	OrderAscending SortOrder = "ascending"
	// OrderDescending は降順を表す。
	OrderDescending SortOrder = "descending"
)

// FilterSpec は1回の検索条件を表すイミュータブルな値オブジェクト。
// 検索実行ごとに1回構築し、以後は変更しない。
type FilterSpec struct {
	Query     string          // 全文検索クエリ。空文字列は未指定
	Limit     int             // 結果件数の上限
	Status    StatusFilter    // open/closed/all
	Author    string          // 作成者の表示名フィルタ。空文字列は未指定
	Anonymous AnonymousMode   // include/hide/only
	From      *time.Time      // 期間の開始。nilは未指定
	To        *time.Time      // 期間の終了。nilは未指定
	SortBy    SortField       // created/updated
	Order     SortOrder       // ascending/descending
	Polygon   json.RawMessage // GeoJSONポリゴン制約。nilは未指定
	Countries []string        // 国コード制約。空は未指定
}

// DefaultFilterSpec は既定の検索条件を返す。
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		Limit:     100,
		Status:    StatusFilterAll,
		Anonymous: AnonymousInclude,
		SortBy:    SortByCreated,
		Order:     OrderDescending,
	}
}
