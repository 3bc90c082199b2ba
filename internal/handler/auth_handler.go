package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/fibi-app/fibi/internal/auth"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/view"
)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string // マジックリンクのコールバックURLに使う公開URL
	Cookies auth.CookieConfig
}

// AuthHandler はログイン・ログアウトとコールバックのHTTPハンドラー。
type AuthHandler struct {
	service AuthService
	config  AuthHandlerConfig
	pages   *pageRenderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthService, config AuthHandlerConfig, pages *pageRenderer) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		pages:   pages,
	}
}

// Home はトップページ。
// GET /
//
// codeクエリ付きの場合はマジックリンクのコールバックとして/auth/callbackへ転送する。
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		http.Redirect(w, r, "/auth/callback?"+url.Values{"code": {code}}.Encode(), http.StatusTemporaryRedirect)
		return
	}
	if middleware.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, defaultRedirect, http.StatusTemporaryRedirect)
		return
	}
	view.Render(w, r, http.StatusOK, view.Landing(h.pages.page(r, "")))
}

// LoginPage はログインフォームを表示する。ログイン済みの場合はリダイレクト先へ遷移する。
// GET /login?redirect=/path
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect")
	if middleware.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, SanitizeRedirect(redirect), http.StatusTemporaryRedirect)
		return
	}

	form := view.LoginForm{}
	if redirect != "" {
		form.Redirect = SanitizeRedirect(redirect)
	}
	view.Render(w, r, http.StatusOK, view.Login(h.pages.page(r, "Log in"), form))
}

// Login はメールアドレスとパスワードでログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	redirect := r.PostFormValue("redirect")

	session, err := h.service.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		form := view.LoginForm{Email: email, Redirect: redirect, Error: "Invalid email or password."}
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.ErrorContext(r.Context(), "password sign-in failed", slog.String("error", err.Error()))
			form.Error = "Login is temporarily unavailable. Please try again."
			status = http.StatusBadGateway
		}
		view.Render(w, r, status, view.Login(h.pages.page(r, "Log in"), form))
		return
	}

	auth.SetSessionCookies(w, h.config.Cookies, session)
	http.Redirect(w, r, SanitizeRedirect(redirect), http.StatusSeeOther)
}

// MagicLink はPKCE付きのマジックリンクを送信する。
// POST /login/magic
func (h *AuthHandler) MagicLink(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	redirect := r.PostFormValue("redirect")

	callback := strings.TrimRight(h.config.BaseURL, "/") + "/auth/callback?" +
		url.Values{"next": {SanitizeRedirect(redirect)}}.Encode()

	verifier, err := h.service.SendMagicLink(r.Context(), email, callback)
	if err != nil {
		form := view.LoginForm{Email: email, Redirect: redirect, Error: "Enter your email address."}
		status := http.StatusBadRequest
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.ErrorContext(r.Context(), "magic link request failed", slog.String("error", err.Error()))
			form.Error = "We could not send the link. Please try again."
			status = http.StatusBadGateway
		}
		view.Render(w, r, status, view.Login(h.pages.page(r, "Log in"), form))
		return
	}

	auth.SetCodeVerifierCookie(w, h.config.Cookies, verifier)
	view.Render(w, r, http.StatusOK, view.MagicLinkSent(h.pages.page(r, "Check your email"), email))
}

// Callback はマジックリンクの認可コードをセッションに交換する。
// GET /auth/callback?code=xxx&next=/path
//
// codeがない場合や交換に失敗した場合は/loginへリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	verifier := auth.PopCodeVerifier(w, r, h.config.Cookies)
	if code == "" {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	session, err := h.service.ExchangeCode(r.Context(), code, verifier)
	if err != nil {
		slog.WarnContext(r.Context(), "auth code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	auth.SetSessionCookies(w, h.config.Cookies, session)
	http.Redirect(w, r, SanitizeRedirect(r.URL.Query().Get("next")), http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken, _ := auth.TokensFromRequest(r)
	if err := h.service.SignOut(r.Context(), accessToken); err != nil {
		// ログアウト失敗してもCookieはクリアする
		slog.WarnContext(r.Context(), "failed to sign out", slog.String("error", err.Error()))
	}

	auth.ClearSessionCookies(w, h.config.Cookies)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
