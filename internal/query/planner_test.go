package query

import (
	"testing"

	"github.com/hitoshi/notescope/internal/model"
)

// viewportOf は面積が指定平方度になる正方形ビューポートを返す。
func viewportOf(t *testing.T, area float64) *model.BoundingBox {
	t.Helper()
	side := 1.0
	switch {
	case area == 0.2:
		side = 0.4472135954999579 // sqrt(0.2)
	case area == 0.6:
		side = 0.7745966692414834 // sqrt(0.6)
	case area == 2.0:
		side = 1.4142135623730951 // sqrt(2)
	case area == 10.0:
		side = 3.1622776601683795 // sqrt(10)
	default:
		t.Fatalf("未定義のテスト面積: %g", area)
	}
	return &model.BoundingBox{South: 0, West: 0, North: side, East: side}
}

func TestBuildPlan_NilViewportIsSearch(t *testing.T) {
	spec := model.DefaultFilterSpec()
	spec.Query = "bench"

	plan := BuildPlan(spec, nil)

	if plan.Family != model.FamilySearch {
		t.Errorf("Family = %s, want search", plan.Family)
	}
	if len(plan.Requests) != 1 {
		t.Fatalf("リクエスト数 = %d, want 1", len(plan.Requests))
	}
	if plan.Requests[0].BBox != nil {
		t.Error("search系リクエストにbboxが設定されている")
	}
	if plan.FanOut() {
		t.Error("単一リクエストがファンアウトと判定された")
	}
}

func TestBuildPlan_SmallViewportSingleRequest(t *testing.T) {
	viewport := viewportOf(t, 0.2)

	plan := BuildPlan(model.DefaultFilterSpec(), viewport)

	if plan.Family != model.FamilyDefault {
		t.Errorf("Family = %s, want default", plan.Family)
	}
	if len(plan.Requests) != 1 {
		t.Fatalf("リクエスト数 = %d, want 1", len(plan.Requests))
	}
	if plan.Requests[0].BBox == nil || *plan.Requests[0].BBox != *viewport {
		t.Error("単一リクエストのbboxがビューポートと一致しない")
	}
}

func TestBuildPlan_MediumViewportSplitsIntoFour(t *testing.T) {
	plan := BuildPlan(model.DefaultFilterSpec(), viewportOf(t, 0.6))

	if plan.Family != model.FamilyDefault {
		t.Errorf("Family = %s, want default", plan.Family)
	}
	if len(plan.Requests) != 4 {
		t.Fatalf("リクエスト数 = %d, want 4", len(plan.Requests))
	}
	if !plan.FanOut() {
		t.Error("4分割プランがファンアウトと判定されない")
	}
	for i, desc := range plan.Requests {
		if desc.BBox == nil {
			t.Errorf("リクエスト %d にbboxがない", i)
		}
	}
}

func TestBuildPlan_LargeViewportSplitsIntoSixteen(t *testing.T) {
	plan := BuildPlan(model.DefaultFilterSpec(), viewportOf(t, 2.0))

	if len(plan.Requests) != 16 {
		t.Fatalf("リクエスト数 = %d, want 16", len(plan.Requests))
	}
	if plan.Family != model.FamilyDefault {
		t.Errorf("Family = %s, want default", plan.Family)
	}
}

func TestBuildPlan_HugeViewportFallsBackToGlobalSearch(t *testing.T) {
	spec := model.DefaultFilterSpec()
	spec.Query = "broken"

	plan := BuildPlan(spec, viewportOf(t, 10.0))

	if plan.Family != model.FamilySearch {
		t.Errorf("Family = %s, want search", plan.Family)
	}
	if len(plan.Requests) != 1 {
		t.Fatalf("リクエスト数 = %d, want 1", len(plan.Requests))
	}
	// グローバル検索はビューポートを無視する
	if plan.Requests[0].BBox != nil {
		t.Error("グローバル検索にbboxが設定されている")
	}
}

func TestBuildPlan_SpecIsPropagatedToAllRequests(t *testing.T) {
	spec := model.DefaultFilterSpec()
	spec.Limit = 50
	spec.Status = model.StatusFilterOpen

	plan := BuildPlan(spec, viewportOf(t, 0.6))

	for i, desc := range plan.Requests {
		if desc.Spec.Limit != 50 || desc.Spec.Status != model.StatusFilterOpen {
			t.Errorf("リクエスト %d に検索条件が引き継がれていない: %+v", i, desc.Spec)
		}
	}
}
