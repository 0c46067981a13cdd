package prefs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/notescope/internal/model"
)

// mockPrefRepo はPrefRepositoryのモック実装。
type mockPrefRepo struct {
	findByClientAndKey   func(ctx context.Context, clientID, key string) (*model.Preference, error)
	listByClient         func(ctx context.Context, clientID string) ([]*model.Preference, error)
	upsert               func(ctx context.Context, pref *model.Preference) error
	deleteByClientAndKey func(ctx context.Context, clientID, key string) error
}

func (m *mockPrefRepo) FindByClientAndKey(ctx context.Context, clientID, key string) (*model.Preference, error) {
	return m.findByClientAndKey(ctx, clientID, key)
}

func (m *mockPrefRepo) ListByClient(ctx context.Context, clientID string) ([]*model.Preference, error) {
	return m.listByClient(ctx, clientID)
}

func (m *mockPrefRepo) Upsert(ctx context.Context, pref *model.Preference) error {
	return m.upsert(ctx, pref)
}

func (m *mockPrefRepo) DeleteByClientAndKey(ctx context.Context, clientID, key string) error {
	return m.deleteByClientAndKey(ctx, clientID, key)
}

func TestGet_ReturnsPreference(t *testing.T) {
	repo := &mockPrefRepo{
		findByClientAndKey: func(ctx context.Context, clientID, key string) (*model.Preference, error) {
			return &model.Preference{ClientID: clientID, Key: key, Value: "dark"}, nil
		},
	}
	s := NewService(repo)

	pref, err := s.Get(context.Background(), "client-1", "theme")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if pref.Value != "dark" {
		t.Errorf("Value = %q, want dark", pref.Value)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockPrefRepo{
		findByClientAndKey: func(ctx context.Context, clientID, key string) (*model.Preference, error) {
			return nil, nil
		},
	}
	s := NewService(repo)

	_, err := s.Get(context.Background(), "client-1", "missing")
	if err == nil {
		t.Fatal("未登録のキーがエラーにならなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePrefNotFound {
		t.Errorf("err = %v, want code %s", err, model.ErrCodePrefNotFound)
	}
}

func TestGet_EmptyClientIDIsInvalid(t *testing.T) {
	s := NewService(&mockPrefRepo{})

	_, err := s.Get(context.Background(), "", "theme")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidFilter {
		t.Errorf("err = %v, want code %s", err, model.ErrCodeInvalidFilter)
	}
}

func TestSet_UpsertsWithGeneratedID(t *testing.T) {
	var saved *model.Preference
	repo := &mockPrefRepo{
		upsert: func(ctx context.Context, pref *model.Preference) error {
			saved = pref
			return nil
		},
	}
	s := NewService(repo)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	pref, err := s.Set(context.Background(), "client-1", "viewport", `{"south":35}`)
	if err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	if saved == nil || saved.ID == "" {
		t.Fatal("IDが生成されていない")
	}
	if !saved.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", saved.UpdatedAt, fixed)
	}
	if pref.Value != `{"south":35}` {
		t.Errorf("Value = %q", pref.Value)
	}
}

func TestSet_OversizedValueRejected(t *testing.T) {
	s := NewService(&mockPrefRepo{})

	_, err := s.Set(context.Background(), "client-1", "big", strings.Repeat("x", maxValueBytes+1))
	if err == nil {
		t.Fatal("上限超過の設定値がエラーにならなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidFilter {
		t.Errorf("err = %v, want code %s", err, model.ErrCodeInvalidFilter)
	}
}

func TestList_EmptyResult(t *testing.T) {
	repo := &mockPrefRepo{
		listByClient: func(ctx context.Context, clientID string) ([]*model.Preference, error) {
			return nil, nil
		},
	}
	s := NewService(repo)

	prefs, err := s.List(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if len(prefs) != 0 {
		t.Errorf("prefs = %v, want empty", prefs)
	}
}

func TestDelete_MissingKeyBecomesNotFound(t *testing.T) {
	repo := &mockPrefRepo{
		deleteByClientAndKey: func(ctx context.Context, clientID, key string) error {
			return errors.New("preference not found")
		},
	}
	s := NewService(repo)

	err := s.Delete(context.Background(), "client-1", "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePrefNotFound {
		t.Errorf("err = %v, want code %s", err, model.ErrCodePrefNotFound)
	}
}
