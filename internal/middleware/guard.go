package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
)

// ガード名（メトリクスのラベル）
const (
	GuardPage      = "page"
	GuardAPI       = "api"
	GuardAdminPage = "admin_page"
	GuardAdminAPI  = "admin_api"
)

// ガードの判定結果（メトリクスのラベル）
const (
	OutcomeAllow         = "allow"
	OutcomeRedirectLogin = "redirect_login"
	OutcomeRedirectApp   = "redirect_app"
	OutcomeUnauthorized  = "unauthorized"
)

// AdminChecker はユーザーが管理者かどうかを判定する。
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// GuardRecorder はガードの判定結果を記録する。
type GuardRecorder interface {
	RecordGuardDecision(guard, outcome string)
}

// Guards はセッションとロールに基づいてルートへのアクセスを制御する。
// NewSessionMiddlewareの後段に配置する。
type Guards struct {
	admins   AdminChecker
	recorder GuardRecorder
}

// NewGuards はGuardsを生成する。recorderはnilでもよい。
func NewGuards(admins AdminChecker, recorder GuardRecorder) *Guards {
	return &Guards{admins: admins, recorder: recorder}
}

// LoginRedirectURL は元のパスとクエリをredirectパラメータに持つログインURLを返す。
func LoginRedirectURL(r *http.Request) string {
	return "/login?" + url.Values{"redirect": {r.URL.RequestURI()}}.Encode()
}

// redirectStatus はガードのリダイレクトに使うステータスコードを返す。
// GET/HEAD以外は303にして、フォームの再送信を防ぐ。
func redirectStatus(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.StatusTemporaryRedirect
	}
	return http.StatusSeeOther
}

// RequirePageSession はセッションのないリクエストを /login?redirect=<元のパス> へリダイレクトする。
func (g *Guards) RequirePageSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			g.record(GuardPage, OutcomeRedirectLogin)
			http.Redirect(w, r, LoginRedirectURL(r), redirectStatus(r))
			return
		}
		g.record(GuardPage, OutcomeAllow)
		next.ServeHTTP(w, r)
	})
}

// RequireAPISession はセッションのないリクエストに401 {"error":"Unauthorized"} を返す。
func (g *Guards) RequireAPISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			g.record(GuardAPI, OutcomeUnauthorized)
			WriteUnauthorized(w)
			return
		}
		g.record(GuardAPI, OutcomeAllow)
		next.ServeHTTP(w, r)
	})
}

// RequireAdminPage は管理者以外を拒否するページ用ガード。
// 未ログインはログインへ、ロールの取得失敗・プロフィールなし・非管理者は/appへリダイレクトする。
func (g *Guards) RequireAdminPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			g.record(GuardAdminPage, OutcomeRedirectLogin)
			http.Redirect(w, r, LoginRedirectURL(r), redirectStatus(r))
			return
		}

		if !g.isAdmin(r, user.ID) {
			g.record(GuardAdminPage, OutcomeRedirectApp)
			http.Redirect(w, r, "/app", redirectStatus(r))
			return
		}

		g.record(GuardAdminPage, OutcomeAllow)
		next.ServeHTTP(w, r)
	})
}

// RequireAdminAPI は管理者以外に401 {"error":"Unauthorized"} を返すAPI用ガード。
func (g *Guards) RequireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || !g.isAdmin(r, user.ID) {
			g.record(GuardAdminAPI, OutcomeUnauthorized)
			WriteUnauthorized(w)
			return
		}

		g.record(GuardAdminAPI, OutcomeAllow)
		next.ServeHTTP(w, r)
	})
}

// isAdmin はロールを判定する。取得に失敗した場合は管理者でないものとして扱う。
func (g *Guards) isAdmin(r *http.Request, userID string) bool {
	ok, err := g.admins.IsAdmin(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to check admin role",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		return false
	}
	return ok
}

func (g *Guards) record(guard, outcome string) {
	if g.recorder != nil {
		g.recorder.RecordGuardDecision(guard, outcome)
	}
}
