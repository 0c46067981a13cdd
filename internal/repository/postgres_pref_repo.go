package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/notescope/internal/model"
)

// PostgresPrefRepo はPostgreSQLを使用した設定リポジトリ。
type PostgresPrefRepo struct {
	db *sql.DB
}

// NewPostgresPrefRepo はPostgresPrefRepoを生成する。
func NewPostgresPrefRepo(db *sql.DB) *PostgresPrefRepo {
	return &PostgresPrefRepo{db: db}
}

// FindByClientAndKey はclient_idとキーで設定を取得する。見つからない場合はnilを返す。
func (r *PostgresPrefRepo) FindByClientAndKey(ctx context.Context, clientID, key string) (*model.Preference, error) {
	pref := &model.Preference{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, client_id, key, value, updated_at FROM preferences
		 WHERE client_id = $1 AND key = $2`,
		clientID, key,
	).Scan(&pref.ID, &pref.ClientID, &pref.Key, &pref.Value, &pref.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find preference: %w", err)
	}

	return pref, nil
}

// ListByClient はclient_idの全設定をキーの昇順で返す。
func (r *PostgresPrefRepo) ListByClient(ctx context.Context, clientID string) ([]*model.Preference, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, client_id, key, value, updated_at FROM preferences
		 WHERE client_id = $1 ORDER BY key`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*model.Preference
	for rows.Next() {
		pref := &model.Preference{}
		if err := rows.Scan(&pref.ID, &pref.ClientID, &pref.Key, &pref.Value, &pref.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}

	return prefs, nil
}

// Upsert は設定を冪等にUPSERTする。
// (client_id, key)の一意制約の衝突時は値と更新日時のみを上書きする。
func (r *PostgresPrefRepo) Upsert(ctx context.Context, pref *model.Preference) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (id, client_id, key, value, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (client_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		pref.ID, pref.ClientID, pref.Key, pref.Value, pref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}

	return nil
}

// DeleteByClientAndKey はclient_idとキーで設定を削除する。
// 削除対象が存在しない場合はエラーを返す。
func (r *PostgresPrefRepo) DeleteByClientAndKey(ctx context.Context, clientID, key string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE client_id = $1 AND key = $2`,
		clientID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("preference not found: %s/%s", clientID, key)
	}
	return nil
}

// compile-time interface check
var _ PrefRepository = (*PostgresPrefRepo)(nil)
