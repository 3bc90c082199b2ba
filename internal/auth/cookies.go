package auth

import (
	"net/http"
	"time"

	"github.com/fibi-app/fibi/internal/model"
)

// Cookie名
const (
	AccessTokenCookie  = "fibi-access-token"
	RefreshTokenCookie = "fibi-refresh-token"
	CodeVerifierCookie = "fibi-code-verifier"
)

const (
	// sessionCookieMaxAge はトークンCookieの保持期間。
	// アクセストークンの有効期限より長く保持し、期限切れ時にリフレッシュできるようにする。
	sessionCookieMaxAge = 30 * 24 * time.Hour
	// verifierCookieMaxAge はマジックリンクの有効期間に合わせたverifierの保持期間。
	verifierCookieMaxAge = time.Hour
)

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// TokensFromRequest はリクエストCookieからアクセストークンとリフレッシュトークンを読み取る。
func TokensFromRequest(r *http.Request) (accessToken, refreshToken string) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		accessToken = c.Value
	}
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}
	return accessToken, refreshToken
}

// SetSessionCookies はセッションのトークンをHttpOnly Cookieに書き込む。
func SetSessionCookies(w http.ResponseWriter, cfg CookieConfig, session *model.Session) {
	http.SetCookie(w, cfg.cookie(AccessTokenCookie, session.AccessToken, sessionCookieMaxAge))
	http.SetCookie(w, cfg.cookie(RefreshTokenCookie, session.RefreshToken, sessionCookieMaxAge))
}

// ClearSessionCookies はトークンCookieを削除する。
func ClearSessionCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, cfg.cookie(RefreshTokenCookie, "", -1))
}

// SetCodeVerifierCookie はPKCEのverifierを保存する。
func SetCodeVerifierCookie(w http.ResponseWriter, cfg CookieConfig, verifier string) {
	http.SetCookie(w, cfg.cookie(CodeVerifierCookie, verifier, verifierCookieMaxAge))
}

// PopCodeVerifier はverifierを読み取り、同時にCookieを削除する。
func PopCodeVerifier(w http.ResponseWriter, r *http.Request, cfg CookieConfig) string {
	c, err := r.Cookie(CodeVerifierCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, cfg.cookie(CodeVerifierCookie, "", -1))
	return c.Value
}

// cookie はmaxAgeが負の場合に削除用のCookieを返す。
func (cfg CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}
