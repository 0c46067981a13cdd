package geo

import "github.com/hitoshi/notescope/internal/model"

// Split は矩形範囲をdepth回の反復で再帰的に4分割する。
// 各反復で現在の全矩形を中点周りの4象限に分割するため、
// 1つの入力矩形はdepth回の反復後に4^depth個の矩形になる。
// 経度の中点が±180°を越える場合は±360°のラップアラウンドで正規化する。
// QueryPlannerのファンアウト戦略の基礎となる。
func Split(box model.BoundingBox, depth int) []model.BoundingBox {
	boxes := []model.BoundingBox{box}
	for i := 0; i < depth; i++ {
		next := make([]model.BoundingBox, 0, len(boxes)*4)
		for _, b := range boxes {
			next = append(next, quadrants(b)...)
		}
		boxes = next
	}
	return boxes
}

// quadrants は矩形を中点周りの4象限に分割する。
func quadrants(b model.BoundingBox) []model.BoundingBox {
	midLat := (b.South + b.North) / 2
	midLon := model.NormalizeLon(b.West + b.Width()/2)

	return []model.BoundingBox{
		{South: b.South, West: b.West, North: midLat, East: midLon},
		{South: b.South, West: midLon, North: midLat, East: b.East},
		{South: midLat, West: b.West, North: b.North, East: midLon},
		{South: midLat, West: midLon, North: b.North, East: b.East},
	}
}
