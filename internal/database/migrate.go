// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsはprofiles, site_settings, items, email_automations, email_automation_runsの
// 5テーブルを定義する。バイナリに埋め込み、migrateサブコマンドから適用する。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtyMigration は前回のマイグレーションが途中で失敗したままであることを示す。
var ErrDirtyMigration = errors.New("database schema is dirty")

// NewMigrator は埋め込みSQLをソースにしたmigrateインスタンスを返す。
// Supabase側でprofilesが先に作られている環境もあるため、SQLはIF NOT EXISTSで書く。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションを適用し、適用後のスキーマバージョンを返す。
// dirtyな状態で止まっている場合は適用せずにErrDirtyMigrationを返す。
func RunMigrations(databaseURL string) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if v, dirty, err := m.Version(); err == nil && dirty {
		return v, fmt.Errorf("%w at version %d, fix the schema and force the version before retrying", ErrDirtyMigration, v)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	v, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
