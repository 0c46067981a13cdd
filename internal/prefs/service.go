// Package prefs はクライアントごとのユーザー設定のドメインロジックを提供する。
// 最終ビューポート、テーマ、機能トグルなどのキー/値ペアを永続化する。
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notescope/internal/model"
	"github.com/hitoshi/notescope/internal/repository"
)

// maxValueBytes は1設定値の最大サイズ。ビューポートJSONやテーマ設定には十分な上限。
const maxValueBytes = 4096

// Service は設定管理のサービス層。
type Service struct {
	repo repository.PrefRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.PrefRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Get はclient_idとキーで設定を取得する。
// 見つからない場合はPrefNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, clientID, key string) (*model.Preference, error) {
	if err := validateKey(clientID, key); err != nil {
		return nil, err
	}

	pref, err := s.repo.FindByClientAndKey(ctx, clientID, key)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if pref == nil {
		return nil, model.NewPrefNotFoundError(key)
	}

	return pref, nil
}

// List はclient_idの全設定を返す。設定が存在しない場合は空スライスを返す。
func (s *Service) List(ctx context.Context, clientID string) ([]*model.Preference, error) {
	if clientID == "" {
		return nil, model.NewInvalidFilterError("client_idが指定されていません")
	}

	prefs, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("設定一覧の取得に失敗しました: %w", err)
	}

	return prefs, nil
}

// Set は設定を冪等に保存する。既存のキーは値を上書きする。
func (s *Service) Set(ctx context.Context, clientID, key, value string) (*model.Preference, error) {
	if err := validateKey(clientID, key); err != nil {
		return nil, err
	}
	if len(value) > maxValueBytes {
		return nil, model.NewInvalidFilterError(
			fmt.Sprintf("設定値が上限（%dバイト）を超えています", maxValueBytes))
	}

	pref := &model.Preference{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}

	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	slog.Info("設定を保存しました",
		slog.String("client_id", clientID),
		slog.String("key", key),
	)

	return pref, nil
}

// Delete はclient_idとキーで設定を削除する。
func (s *Service) Delete(ctx context.Context, clientID, key string) error {
	if err := validateKey(clientID, key); err != nil {
		return err
	}

	if err := s.repo.DeleteByClientAndKey(ctx, clientID, key); err != nil {
		return model.NewPrefNotFoundError(key)
	}

	return nil
}

// validateKey はclient_idとキーの形式を検証する。
func validateKey(clientID, key string) error {
	if clientID == "" {
		return model.NewInvalidFilterError("client_idが指定されていません")
	}
	if key == "" {
		return model.NewInvalidFilterError("設定キーが指定されていません")
	}
	return nil
}
