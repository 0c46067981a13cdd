// Package geo は球面幾何のユーティリティを提供する。
// 矩形範囲の実面積計算、重なり率、ポリゴン単純化（Ramer–Douglas–Peucker）、
// 座標点周りのバッファ矩形の算出を含む。
package geo

import (
	"math"

	"github.com/hitoshi/notescope/internal/model"
)

// earthRadiusMeters は地球の半径（メートル、WGS84の長半径）。
const earthRadiusMeters = 6378137.0

// metersPerDegree は緯度1度あたりのおおよその距離（メートル）。
const metersPerDegree = 111319.9

// Area は矩形範囲の球面上の符号付き面積を平方メートルで返す。
// 矩形の4頂点を反時計回りに取り、Gauss/Shoelace式の球面版で計算する。
// 反時計回りの頂点列に対して正の値を返す。符号の正規化は呼び出し側で行う。
func Area(b model.BoundingBox) float64 {
	// ラップアラウンドを正規化した東端を使用する
	east := b.West + b.Width()
	ring := [][2]float64{
		{b.West, b.South},
		{east, b.South},
		{east, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}

	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		lon1, lat1 := rad(ring[i][0]), rad(ring[i][1])
		lon2, lat2 := rad(ring[i+1][0]), rad(ring[i+1][1])
		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}

	return sum * earthRadiusMeters * earthRadiusMeters / 2
}

// OverlapRatio は2つの矩形の重なり率を[0,1]で返す。
// aがbを完全に包含する場合は area(b)/area(a)、
// 重なりがない場合は0、
// それ以外は交差面積と両矩形を覆う外接矩形の面積の比を返す。
func OverlapRatio(a, b model.BoundingBox) float64 {
	inter, ok := intersection(a, b)
	if !ok {
		return 0
	}

	areaA := math.Abs(Area(a))
	if areaA == 0 {
		return 0
	}
	areaB := math.Abs(Area(b))

	if contains(a, b) {
		return areaB / areaA
	}

	union := boundingUnion(a, b)
	areaUnion := math.Abs(Area(union))
	if areaUnion == 0 {
		return 0
	}
	return math.Abs(Area(inter)) / areaUnion
}

// Buffer は座標点の周囲にradiusMetersの矩形バッファを構築する。
// 経度方向の幅は緯度によるcos補正を適用する。
func Buffer(p model.LatLon, radiusMeters float64) model.BoundingBox {
	dLat := radiusMeters / metersPerDegree
	dLon := radiusMeters / (metersPerDegree * math.Cos(rad(p.Lat)))
	return model.BoundingBox{
		South: p.Lat - dLat,
		West:  p.Lon - dLon,
		North: p.Lat + dLat,
		East:  p.Lon + dLon,
	}
}

// Simplify はGeoJSONポリゴン（リングの集合）にRamer–Douglas–Peucker法を適用する。
// 呼び出し側の保持するデータを変更しないよう、ディープコピーに対して処理する。
// keepShapesが有効な場合、単純化後のリングが3点未満になるときは
// 元のリングをそのまま残す（ポリゴンの消失・退化を防ぐ）。
func Simplify(polygon [][][]float64, tolerance float64, keepShapes bool) [][][]float64 {
	result := make([][][]float64, len(polygon))
	for i, ring := range polygon {
		simplified := RDP(copyRing(ring), tolerance)
		if keepShapes && len(simplified) < 3 {
			simplified = copyRing(ring)
		}
		result[i] = simplified
	}
	return result
}

// RDP は点列に対する古典的なRamer–Douglas–Peucker単純化を行う。
// 先頭と末尾を結ぶ弦からの垂直距離が最大の点を求め、
// それがepsilonを超える場合は両半分に再帰し、
// 超えない場合は区間を両端点のみに（点が1つの場合はその1点に）縮約する。
func RDP(points [][]float64, epsilon float64) [][]float64 {
	if len(points) <= 2 {
		return points
	}

	first := points[0]
	last := points[len(points)-1]

	maxDist := -1.0
	maxIdx := 0
	for i := 1; i < len(points)-1; i++ {
		d := perpendicularDistance(points[i], first, last)
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist <= epsilon {
		return [][]float64{first, last}
	}

	left := RDP(points[:maxIdx+1], epsilon)
	right := RDP(points[maxIdx:], epsilon)

	// 接合点の重複を除いて結合する。呼び出し元のスライスを共有しないよう新規に確保する
	merged := make([][]float64, 0, len(left)+len(right)-1)
	merged = append(merged, left[:len(left)-1]...)
	merged = append(merged, right...)
	return merged
}

// perpendicularDistance は点pから弦a-bへの垂直距離を返す。
// 除算による計算誤差を避けるため、垂直・水平の弦は特別扱いする。
func perpendicularDistance(p, a, b []float64) float64 {
	if a[0] == b[0] {
		// 垂直な弦
		return math.Abs(p[0] - a[0])
	}
	if a[1] == b[1] {
		// 水平な弦
		return math.Abs(p[1] - a[1])
	}

	slope := (b[1] - a[1]) / (b[0] - a[0])
	intercept := a[1] - slope*a[0]
	return math.Abs(slope*p[0]-p[1]+intercept) / math.Sqrt(slope*slope+1)
}

// intersection は2矩形の交差矩形を返す。交差しない場合はokがfalseになる。
// 経度は180度線をまたぐ場合に備えて±360°シフトした候補から最良の重なりを選ぶ。
func intersection(a, b model.BoundingBox) (model.BoundingBox, bool) {
	south := math.Max(a.South, b.South)
	north := math.Min(a.North, b.North)
	if south >= north {
		return model.BoundingBox{}, false
	}

	aW := a.West
	aE := a.West + a.Width()

	bestW, bestE := 0.0, 0.0
	found := false
	for _, shift := range []float64{-360, 0, 360} {
		bW := b.West + shift
		bE := bW + b.Width()
		w := math.Max(aW, bW)
		e := math.Min(aE, bE)
		if w < e && (!found || e-w > bestE-bestW) {
			bestW, bestE = w, e
			found = true
		}
	}
	if !found {
		return model.BoundingBox{}, false
	}

	return model.BoundingBox{
		South: south,
		West:  model.NormalizeLon(bestW),
		North: north,
		East:  model.NormalizeLon(bestE),
	}, true
}

// contains はaがbを完全に包含するかどうかを返す。
func contains(a, b model.BoundingBox) bool {
	if b.South < a.South || b.North > a.North {
		return false
	}
	aW := a.West
	aE := a.West + a.Width()
	for _, shift := range []float64{-360, 0, 360} {
		bW := b.West + shift
		bE := bW + b.Width()
		if bW >= aW && bE <= aE {
			return true
		}
	}
	return false
}

// boundingUnion は2矩形の両方を覆う外接矩形を返す。
func boundingUnion(a, b model.BoundingBox) model.BoundingBox {
	aW := a.West
	aE := a.West + a.Width()

	bestW, bestE := aW, aE
	bestWidth := math.Inf(1)
	for _, shift := range []float64{-360, 0, 360} {
		bW := b.West + shift
		bE := bW + b.Width()
		w := math.Min(aW, bW)
		e := math.Max(aE, bE)
		if e-w < bestWidth {
			bestW, bestE, bestWidth = w, e, e-w
		}
	}

	return model.BoundingBox{
		South: math.Min(a.South, b.South),
		West:  model.NormalizeLon(bestW),
		North: math.Max(a.North, b.North),
		East:  model.NormalizeLon(bestE),
	}
}

// copyRing はリングのディープコピーを返す。
func copyRing(ring [][]float64) [][]float64 {
	out := make([][]float64, len(ring))
	for i, p := range ring {
		cp := make([]float64, len(p))
		copy(cp, p)
		out[i] = cp
	}
	return out
}

// rad は度をラジアンに変換する。
func rad(deg float64) float64 {
	return deg * math.Pi / 180
}
