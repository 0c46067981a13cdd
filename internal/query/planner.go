// Package query は検索リクエストの計画と実行を提供する。
// ビューポート面積に応じたファンアウト戦略の決定、並行フェッチ、
// 部分失敗の吸収、世代トークンによるキャンセル制御を含む。
package query

import (
	"github.com/hitoshi/notescope/internal/geo"
	"github.com/hitoshi/notescope/internal/model"
)

// ファンアウト戦略の面積しきい値（平方度）。
// ビューポートエンドポイントはbbox絞り込みには対応するが、広大な範囲での
// 全文検索には信頼性がない。サブ分割は1リクエストあたりの結果件数を
// プラットフォームの上限以下に保ちながらビューポート全体をカバーするために行い、
// しきい値を超えるとサブリクエストのコストが利益を上回るため
// 単一のグローバル全文検索にフォールバックする。
const (
	// areaSingleRequest 未満ならビューポートそのままの1リクエストで足りる。
	areaSingleRequest = 0.25
	// areaSplitOnce 以下なら4分割（深さ1）する。
	areaSplitOnce = 1.0
	// areaSplitTwice 以下なら16分割（深さ2）する。これを超えるとsearch系に切り替える。
	areaSplitTwice = 4.0
)

// BuildPlan は検索条件とビューポートからリクエスト集合を構築する。
// ビューポートが指定されない場合（リストモード・テキスト検索モード）は
// 常にsearch系の単一リクエストになる。
// マップモードではビューポート面積（平方度）に応じて戦略を選択する:
//
//	S < 0.25      ビューポートそのままの1リクエスト（default系）
//	0.25 ≤ S ≤ 1  深さ1の4分割、各サブ範囲に1リクエスト（default系）
//	1 < S ≤ 4     深さ2の16分割、各サブ範囲に1リクエスト（default系）
//	S > 4         ビューポートを無視した単一のグローバル全文検索（search系）
func BuildPlan(spec model.FilterSpec, viewport *model.BoundingBox) model.QueryPlan {
	if viewport == nil {
		return searchPlan(spec)
	}

	area := viewport.AreaDegrees()
	switch {
	case area < areaSingleRequest:
		return viewportPlan(spec, []model.BoundingBox{*viewport})
	case area <= areaSplitOnce:
		return viewportPlan(spec, geo.Split(*viewport, 1))
	case area <= areaSplitTwice:
		return viewportPlan(spec, geo.Split(*viewport, 2))
	default:
		return searchPlan(spec)
	}
}

// searchPlan はsearch系の単一リクエストプランを構築する。
func searchPlan(spec model.FilterSpec) model.QueryPlan {
	return model.QueryPlan{
		Family: model.FamilySearch,
		Requests: []model.RequestDescriptor{
			{Family: model.FamilySearch, Spec: spec},
		},
	}
}

// viewportPlan はdefault系のプランを構築する。サブ範囲ごとに1リクエストを発行する。
func viewportPlan(spec model.FilterSpec, boxes []model.BoundingBox) model.QueryPlan {
	requests := make([]model.RequestDescriptor, len(boxes))
	for i := range boxes {
		box := boxes[i]
		requests[i] = model.RequestDescriptor{
			Family: model.FamilyDefault,
			BBox:   &box,
			Spec:   spec,
		}
	}
	return model.QueryPlan{
		Family:   model.FamilyDefault,
		Requests: requests,
	}
}
