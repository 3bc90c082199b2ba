// Package middleware はHTTPミドルウェアとルートガードを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fibi-app/fibi/internal/auth"
	"github.com/fibi-app/fibi/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey      = contextKey("user")
	requestIDContextKey = contextKey("request_id")
	csrfContextKey      = contextKey("csrf_token")
	userHolderKey       = contextKey("user_holder")
)

// userHolder はアクセスログに解決済みユーザーIDを渡すための入れ物。
type userHolder struct {
	userID string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

func noteUser(ctx context.Context, userID string) {
	if h, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		h.userID = userID
	}
}

// SessionResolver はCookieのトークンからセッションを解決する。
// auth.Serviceが実装する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, accessToken, refreshToken string) (*auth.Resolution, error)
}

// NewSessionMiddleware はCookieからセッションを解決し、ユーザーをコンテキストに格納するミドルウェアを返す。
//
// このミドルウェア自体はリクエストを拒否しない。未認証のリクエストもそのまま次へ渡し、
// 拒否はRequirePageSession等のガードが行う。トークンがリフレッシュされた場合は
// 新しいCookieをレスポンスに書き込む。リフレッシュトークンが無効になっている場合は
// 古いCookieを削除する。
func NewSessionMiddleware(resolver SessionResolver, cookies auth.CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken, refreshToken := auth.TokensFromRequest(r)
			if accessToken == "" && refreshToken == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := resolver.ResolveSession(r.Context(), accessToken, refreshToken)
			if err != nil {
				if errors.Is(err, auth.ErrNoSession) {
					auth.ClearSessionCookies(w, cookies)
				} else {
					slog.ErrorContext(r.Context(), "failed to resolve session",
						slog.String("error", err.Error()),
						slog.String("request_id", RequestIDFromContext(r.Context())),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			if res.Refreshed != nil {
				auth.SetSessionCookies(w, cookies, res.Refreshed)
			}

			user := res.User
			noteUser(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), &user)))
		})
	}
}

// UserFromContext はセッションミドルウェアが格納したユーザーを返す。未認証の場合はnil。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
