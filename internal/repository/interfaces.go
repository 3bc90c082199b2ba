// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"

	"github.com/fibi-app/fibi/internal/model"
)

// ProfileRepository はprofilesテーブルの参照インターフェース。
// プロフィールは認証基盤側で作成されるため、ここでは読み取りのみを行う。
type ProfileRepository interface {
	// FindByID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID string) (*model.Profile, error)
}

// SiteSettingRepository はサイト設定（キー・バリュー）の永続化インターフェース。
type SiteSettingRepository interface {
	// Get は指定キーの設定を取得する。行が存在しない場合はnilを返す。
	Get(ctx context.Context, key string) (*model.SiteSetting, error)

	// Upsert は設定値を作成または更新する。空文字列はNULLとして保存する。
	Upsert(ctx context.Context, key, value string) error
}

// ItemRepository は保存アイテムの永続化インターフェース。
// すべての参照・削除はuser_idでスコープされる。
type ItemRepository interface {
	// ListByUser はユーザーのアイテムを新しい順に最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Item, error)

	// FindByUserAndID はユーザーが所有する指定IDのアイテムを取得する。
	// 存在しない、または他ユーザーのアイテムの場合はnilを返す。
	FindByUserAndID(ctx context.Context, userID, id string) (*model.Item, error)

	// Create はアイテムを作成する。
	Create(ctx context.Context, item *model.Item) error

	// DeleteByUserAndID はユーザーが所有するアイテムを削除する。
	// 削除対象が存在しなかった場合はfalseを返す。
	DeleteByUserAndID(ctx context.Context, userID, id string) (bool, error)
}

// AutomationRepository はメール自動化と実行履歴の永続化インターフェース。
type AutomationRepository interface {
	// FindByID は指定IDのメール自動化を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.EmailAutomation, error)

	// ListWithLastRun はメール自動化の一覧を直近の実行履歴付きで返す。
	ListWithLastRun(ctx context.Context) ([]model.AutomationWithLastRun, error)

	// CreateRun は実行履歴を記録する。
	CreateRun(ctx context.Context, run *model.AutomationRun) error
}
