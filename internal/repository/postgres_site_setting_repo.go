package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fibi-app/fibi/internal/model"
)

// PostgresSiteSettingRepo はPostgreSQLを使用したサイト設定リポジトリ。
type PostgresSiteSettingRepo struct {
	db *sql.DB
}

// NewPostgresSiteSettingRepo はPostgresSiteSettingRepoを生成する。
func NewPostgresSiteSettingRepo(db *sql.DB) *PostgresSiteSettingRepo {
	return &PostgresSiteSettingRepo{db: db}
}

// Get は指定キーの設定を取得する。行が存在しない場合はnilを返す。
// 値がNULLの行はValueが空文字列になる。
func (r *PostgresSiteSettingRepo) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	setting := &model.SiteSetting{}
	var value sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM site_settings WHERE key = $1`,
		key,
	).Scan(&setting.Key, &value, &setting.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site setting %q: %w", key, err)
	}

	setting.Value = nullStringValue(value)
	return setting, nil
}

// Upsert は設定値を作成または更新する。空文字列はNULLとして保存する。
func (r *PostgresSiteSettingRepo) Upsert(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO site_settings (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, toNullString(value),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert site setting %q: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ SiteSettingRepository = (*PostgresSiteSettingRepo)(nil)
