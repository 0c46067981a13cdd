// Package view はノートコレクションの表示形式への変換を提供する。
// マップビュー（GeoJSON）とリストビュー（カード配列）の2種類を実装する。
package view

import (
	"github.com/hitoshi/notescope/internal/model"
)

// ビュー名。APIのviewパラメータの有効値。
const (
	NameMap  = "map"
	NameList = "list"
)

// UserResolver は作成者IDから表示用メタデータを解決するインターフェース。
// 未解決のIDに対しては2番目の戻り値がfalseになり、ビューはユーザー情報を省略する。
type UserResolver interface {
	Get(id int64) (model.UserRecord, bool)
}

// Renderer はノートコレクションを1つの表示形式に変換するインターフェース。
// 実装は状態を持たず、同一入力に対して常に同一出力を返す。
type Renderer interface {
	// Name はビューの識別名を返す。
	Name() string
	// Render はノートコレクションと集計をビュー固有の表現に変換する。
	Render(notes []*model.Note, summary model.Summary, users UserResolver) any
}

// ForName はビュー名に対応するRendererを返す。
// 未知のビュー名は呼び出し側のコントラクト違反としてエラーを伝播させる。
func ForName(name string) (Renderer, error) {
	switch name {
	case NameMap:
		return &MapRenderer{}, nil
	case NameList:
		return &ListRenderer{}, nil
	default:
		return nil, model.NewUnknownViewError(name)
	}
}
