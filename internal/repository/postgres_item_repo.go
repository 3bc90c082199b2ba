package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fibi-app/fibi/internal/model"
)

const itemColumns = `id, user_id, url, title, image_url, price, notes, created_at, updated_at`

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// ListByUser はユーザーのアイテムを新しい順に最大limit件返す。
func (r *PostgresItemRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 FROM items
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// FindByUserAndID はユーザーが所有する指定IDのアイテムを取得する。
// 存在しない、または他ユーザーのアイテムの場合はnilを返す。
func (r *PostgresItemRepo) FindByUserAndID(ctx context.Context, userID, id string) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Create はアイテムを作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.UserID, item.URL, item.Title, item.ImageURL, item.Price, item.Notes,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// DeleteByUserAndID はユーザーが所有するアイテムを削除する。
// 削除対象が存在しなかった場合はfalseを返す。
func (r *PostgresItemRepo) DeleteByUserAndID(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem は1行分のアイテムを読み取る。sql.ErrNoRowsはラップせずに返す。
func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	err := s.Scan(
		&item.ID, &item.UserID, &item.URL, &item.Title, &item.ImageURL,
		&item.Price, &item.Notes, &item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return item, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
