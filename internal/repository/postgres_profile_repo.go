package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fibi-app/fibi/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
// ロールはリクエストごとに読み直すため、キャッシュは行わない。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	var role string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, role, created_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&profile.ID, &profile.Email, &role, &profile.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile.Role = model.Role(role)
	return profile, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
