// Package auth はSupabase互換の認証プロバイダーとのセッション連携を提供する。
//
// ユーザーとセッションの実体は外部の認証基盤が所有する。このパッケージは
// Cookieに保存されたトークンを検証し、期限切れの場合はリフレッシュし、
// 管理者判定のためにprofilesテーブルのロールを参照する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/repository"
)

var (
	// ErrNoSession は有効なセッションが存在しないことを示す。
	ErrNoSession = errors.New("no session")
	// ErrInvalidCredentials は認証プロバイダーが資格情報やグラントを拒否したことを示す。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Provider は外部認証プロバイダーの操作を表す。
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	SendMagicLink(ctx context.Context, email, codeChallenge, redirectTo string) error
	SignOut(ctx context.Context, accessToken string) error
}

// RefreshRecorder はセッション更新の成否を記録する。
type RefreshRecorder interface {
	RecordSessionRefresh(success bool)
}

// Resolution はセッション解決の結果。
// Refreshedはトークンを更新した場合のみ非nilになり、呼び出し側でCookieを書き換える。
type Resolution struct {
	User      model.User
	Refreshed *model.Session
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider Provider
	verifier *TokenVerifier
	profiles repository.ProfileRepository
	recorder RefreshRecorder
	logger   *slog.Logger
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	provider Provider,
	verifier *TokenVerifier,
	profiles repository.ProfileRepository,
	recorder RefreshRecorder,
) *Service {
	return &Service{
		provider: provider,
		verifier: verifier,
		profiles: profiles,
		recorder: recorder,
		logger:   slog.Default(),
	}
}

// ResolveSession はCookieのトークンから現在のユーザーを解決する。
//
// アクセストークンが有効であればそのユーザーを返す。期限切れ（または欠落）で
// リフレッシュトークンがある場合はプロバイダーで更新し、新しいセッションを
// Resolution.Refreshedに格納する。それ以外はErrNoSessionをラップして返す。
func (s *Service) ResolveSession(ctx context.Context, accessToken, refreshToken string) (*Resolution, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, ErrNoSession
	}

	if accessToken != "" {
		user, err := s.verifier.Verify(accessToken)
		if err == nil {
			return &Resolution{User: *user}, nil
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			s.logger.WarnContext(ctx, "access token rejected", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
		}
	}

	if refreshToken == "" {
		return nil, fmt.Errorf("%w: access token expired", ErrNoSession)
	}

	session, err := s.provider.Refresh(ctx, refreshToken)
	s.recordRefresh(err == nil)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.WarnContext(ctx, "session refresh rejected", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
		}
		s.logger.ErrorContext(ctx, "session refresh failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	user, err := s.verifier.Verify(session.AccessToken)
	if err != nil {
		s.logger.ErrorContext(ctx, "refreshed token rejected", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	session.User = *user

	s.logger.DebugContext(ctx, "session refreshed", slog.String("user_id", user.ID))
	return &Resolution{User: *user, Refreshed: session}, nil
}

// IsAdmin はユーザーのprofiles.roleがadminかどうかを返す。
// プロフィール行が存在しない場合はfalseを返す。ロールはキャッシュせず毎回読み直す。
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile.IsAdmin(), nil
}

// SignInWithPassword はメールアドレスとパスワードでログインする。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed in",
		slog.String("user_id", session.User.ID),
		slog.String("method", "password"),
	)
	return session, nil
}

// SendMagicLink はマジックリンクを送信させ、コールバック時に必要なverifierを返す。
func (s *Service) SendMagicLink(ctx context.Context, email, redirectTo string) (string, error) {
	if email == "" {
		return "", ErrInvalidCredentials
	}

	verifier, err := NewCodeVerifier()
	if err != nil {
		return "", err
	}
	if err := s.provider.SendMagicLink(ctx, email, CodeChallenge(verifier), redirectTo); err != nil {
		return "", fmt.Errorf("failed to send magic link: %w", err)
	}
	return verifier, nil
}

// ExchangeCode はコールバックで受け取った認可コードをセッションに交換する。
func (s *Service) ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error) {
	if code == "" || verifier == "" {
		return nil, ErrInvalidCredentials
	}

	session, err := s.provider.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed in",
		slog.String("user_id", session.User.ID),
		slog.String("method", "magic_link"),
	)
	return session, nil
}

// SignOut はプロバイダー側のセッションを失効させる。
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return s.provider.SignOut(ctx, accessToken)
}

func (s *Service) recordRefresh(success bool) {
	if s.recorder != nil {
		s.recorder.RecordSessionRefresh(success)
	}
}
