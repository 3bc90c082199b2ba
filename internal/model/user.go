// Package model はドメインモデルを定義する。
package model

import "time"

// Role はプロフィールに付与されるロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理画面と管理APIにアクセスできるユーザー。
	RoleAdmin Role = "admin"
)

// User は認証プロバイダーが発行したセッションの持ち主を表す。
// 実体は外部の認証基盤が所有し、ここではトークンから読み取った値のみを保持する。
type User struct {
	ID    string
	Email string
}

// Session は認証プロバイダーから払い出されたトークン一式を表す。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Profile はprofilesテーブルの1行を表す。
// ロールの参照のみを行い、このアプリケーションからは更新しない。
type Profile struct {
	ID        string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// IsAdmin はプロフィールが管理者ロールを持つかどうかを返す。
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
