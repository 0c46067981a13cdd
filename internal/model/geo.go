// Package model はドメインモデルを定義する。
package model

// BoundingBox は経緯度の矩形範囲を表す。
// 南北は度単位で south ≤ north を常に満たす。
// 西端・東端は±180°をまたぐ（経度180度線のラップアラウンド）ことがある。
type BoundingBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// Width はラップアラウンドを正規化した経度方向の幅（度）を返す。
// 東端が西端より小さい場合は±180°をまたいでいるとみなし360°を加算する。
func (b BoundingBox) Width() float64 {
	w := b.East - b.West
	if w < 0 {
		w += 360
	}
	return w
}

// Height は緯度方向の高さ（度）を返す。
func (b BoundingBox) Height() float64 {
	return b.North - b.South
}

// AreaDegrees は矩形の面積を平方度で返す。
// QueryPlannerのファンアウト戦略の判定に使用する。
func (b BoundingBox) AreaDegrees() float64 {
	return b.Width() * b.Height()
}

// Valid は矩形が有効かどうかを返す。
// north > south かつ、ラップアラウンド正規化後の経度スパンが
// 自己交差しない（幅が360°以内）場合のみ有効とする。
func (b BoundingBox) Valid() bool {
	if b.North <= b.South {
		return false
	}
	if b.South < -90 || b.North > 90 {
		return false
	}
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return false
	}
	return b.Width() <= 360
}

// LatLon は座標点（緯度・経度、度単位）を表す。
type LatLon struct {
	Lat float64
	Lon float64
}

// NormalizeLon は経度を[-180, 180]の範囲に正規化する。
// 180度線をまたぐ分割計算で使用する。
func NormalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
