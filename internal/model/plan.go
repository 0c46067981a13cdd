package model

// EndpointFamily はAPIエンドポイントの系統を表す。
// default系（ビューポートbbox検索）とsearch系（全文検索）では
// クライアント側の再フィルタリング要否が異なる。
type EndpointFamily string

const (
	// FamilyDefault はbboxのみで絞り込むビューポートエンドポイントを表す。
	// 全文検索・作成者・期間のサーバー側フィルタは利用できないため、
	// 取得後にクライアント側で再フィルタする必要がある。
	FamilyDefault EndpointFamily = "default"
	// FamilySearch は全文検索・ソート・各種フィルタ対応の検索エンドポイントを表す。
	FamilySearch EndpointFamily = "search"
)

// RequestDescriptor は発行する1リクエストの内容を表す。
// BBoxはdefault系でのみ設定される。検索条件はSpecから引き継がれる。
type RequestDescriptor struct {
	Family EndpointFamily
	BBox   *BoundingBox // default系の対象範囲。search系ではnil
	Spec   FilterSpec
}

// QueryPlan はQueryPlannerが構築したリクエスト集合を表す。
// 単一リクエスト、またはファンアウト（複数サブ範囲への並列リクエスト）のいずれか。
type QueryPlan struct {
	Family   EndpointFamily
	Requests []RequestDescriptor
}

// FanOut はプランが複数リクエストのファンアウトかどうかを返す。
func (p QueryPlan) FanOut() bool {
	return len(p.Requests) > 1
}
