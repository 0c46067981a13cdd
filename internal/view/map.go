package view

import (
	"time"

	"github.com/hitoshi/notescope/internal/model"
)

// MapRenderer はノートコレクションをGeoJSON FeatureCollectionに変換する。
// 各ノートはPointフィーチャとなり、マーカーの色分けに使う経過期間区分と
// ポップアップ表示用のコメント情報をプロパティとして持つ。
type MapRenderer struct{}

// MapDocument はマップビューのルートオブジェクト。GeoJSONのFeatureCollection。
type MapDocument struct {
	Type     string       `json:"type"`
	Features []MapFeature `json:"features"`
	Summary  MapSummary   `json:"summary"`
}

// MapFeature は1ノートに対応するGeoJSONのPointフィーチャ。
type MapFeature struct {
	Type       string        `json:"type"`
	Geometry   MapGeometry   `json:"geometry"`
	Properties MapProperties `json:"properties"`
}

// MapGeometry はフィーチャの座標。Coordinatesは[経度, 緯度]の順。
type MapGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// MapProperties はマーカー表示とポップアップに必要なノート属性。
type MapProperties struct {
	ID        int64        `json:"id"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	User      string       `json:"user"`
	Anonymous bool         `json:"anonymous"`
	Age       string       `json:"age"`
	Color     string       `json:"color"`
	Comments  []mapComment `json:"comments"`
}

// mapComment はポップアップ内の1コメント。
type mapComment struct {
	User      string    `json:"user"`
	Anonymous bool      `json:"anonymous"`
	Date      time.Time `json:"date"`
	Action    string    `json:"action"`
	HTML      string    `json:"html"`
	Images    []string  `json:"images,omitempty"`
	Age       string    `json:"age"`
	Color     string    `json:"color"`
}

// MapSummary はマップビューのヘッダに表示する集計。
type MapSummary struct {
	Amount             int       `json:"amount"`
	AverageCreatedDate time.Time `json:"average_created_date"`
}

// Name はビューの識別名を返す。
func (r *MapRenderer) Name() string { return NameMap }

// Render はノートコレクションをGeoJSON FeatureCollectionに変換する。
// マップビューはマーカー配置が目的のため、作成者の詳細メタデータは含めない。
func (r *MapRenderer) Render(notes []*model.Note, summary model.Summary, users UserResolver) any {
	features := make([]MapFeature, 0, len(notes))
	for _, note := range notes {
		comments := make([]mapComment, 0, len(note.Comments))
		for _, c := range note.Comments {
			comments = append(comments, mapComment{
				User:      c.User,
				Anonymous: c.Anonymous,
				Date:      c.Date,
				Action:    string(c.Action),
				HTML:      c.HTML,
				Images:    c.Images,
				Age:       string(c.Age),
				Color:     c.Age.Color(),
			})
		}

		features = append(features, MapFeature{
			Type: "Feature",
			Geometry: MapGeometry{
				Type:        "Point",
				Coordinates: []float64{note.Lon, note.Lat},
			},
			Properties: MapProperties{
				ID:        note.ID,
				Status:    string(note.Status),
				CreatedAt: note.CreatedAt,
				UpdatedAt: note.UpdatedAt,
				User:      note.User,
				Anonymous: note.Anonymous,
				Age:       string(note.Age),
				Color:     note.Age.Color(),
				Comments:  comments,
			},
		})
	}

	return &MapDocument{
		Type:     "FeatureCollection",
		Features: features,
		Summary: MapSummary{
			Amount:             summary.Amount,
			AverageCreatedDate: summary.AverageCreatedDate,
		},
	}
}
