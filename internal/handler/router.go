package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fibi-app/fibi/internal/auth"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver       middleware.SessionResolver
	AdminChecker          middleware.AdminChecker
	GuardRecorder         middleware.GuardRecorder
	HTTPRecorder          middleware.HTTPRecorder
	AutomationRateLimiter *middleware.RateLimiter
	Cookies               auth.CookieConfig
	BaseURL               string

	// サービス
	AuthService       AuthService
	ItemService       ItemService
	AutomationService AutomationService
	SiteSettings      SiteSettings
	Version           VersionReader
	DB                Pinger

	// /metrics で公開するハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Metrics → Recovery → SecurityHeaders
//	  └ アプリケーションルート: Session → (Page|API|AdminPage|AdminAPI)ガード → CSRF
//
// /health, /metrics, robots.txt, sitemap.xml, 公開メタデータAPIはセッションを解決しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookies.Secure))

	pages := &pageRenderer{settings: deps.SiteSettings, admins: deps.AdminChecker}
	guards := middleware.NewGuards(deps.AdminChecker, deps.GuardRecorder)

	authHandler := NewAuthHandler(deps.AuthService, AuthHandlerConfig{BaseURL: deps.BaseURL, Cookies: deps.Cookies}, pages)
	pageHandler := NewPageHandler(deps.ItemService, pages)
	itemHandler := NewItemHandler(deps.ItemService)
	adminHandler := NewAdminHandler(deps.SiteSettings, deps.AutomationService, pages)
	metaHandler := NewMetaHandler(deps.BaseURL, deps.SiteSettings, deps.Version, deps.DB)

	r.NotFound(pages.NotFound)

	// --- セッション不要のルート ---

	r.Get("/health", metaHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/robots.txt", metaHandler.Robots)
	r.Get("/sitemap.xml", metaHandler.Sitemap)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(view.Static())))

	// 公開メタデータAPI（サイト自身のオリジンからのCORSを許可）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.BaseURL))
		r.Get("/api/site-meta", metaHandler.SiteMeta)
		r.Options("/api/site-meta", metaHandler.SiteMeta)
		r.Get("/api/version", metaHandler.Version)
		r.Options("/api/version", metaHandler.Version)
	})

	// --- セッションを解決するルート ---
	// ミドルウェアスタック: Session → ガード → CSRF
	// 未認証のAPI呼び出しはCSRF検証より先に401となる。
	csrf := middleware.NewCSRFMiddleware(middleware.CSRFConfig{
		CookieSecure: deps.Cookies.Secure,
		CookieDomain: deps.Cookies.Domain,
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, deps.Cookies))

		// 認証
		r.Group(func(r chi.Router) {
			r.Use(csrf)

			r.Get("/", authHandler.Home)
			r.Get("/login", authHandler.LoginPage)
			r.Post("/login", authHandler.Login)
			r.Post("/login/magic", authHandler.MagicLink)
			r.Get("/auth/callback", authHandler.Callback)
			r.Post("/auth/logout", authHandler.Logout)
		})

		// ログインユーザー向けページ
		r.Group(func(r chi.Router) {
			r.Use(guards.RequirePageSession, csrf)

			r.Get("/app", pageHandler.Dashboard)
			r.Get("/app/how-to", pageHandler.HowTo)
			r.Get("/add", pageHandler.AddForm)
			r.Post("/add", pageHandler.AddSubmit)
			r.Get("/item/{id}", pageHandler.ItemDetail)
			r.Post("/item/{id}/delete", pageHandler.DeleteItem)
		})

		// 管理画面
		r.Group(func(r chi.Router) {
			r.Use(guards.RequireAdminPage, csrf)

			r.Get("/app/admin", adminHandler.Dashboard)
			r.Post("/app/admin/settings", adminHandler.SaveSettings)
		})

		// アイテムAPI
		r.Route("/api/items", func(r chi.Router) {
			r.Use(guards.RequireAPISession, csrf)

			r.Get("/", itemHandler.ListItems)
			r.Post("/", itemHandler.CreateItem)
			r.Get("/{id}", itemHandler.GetItem)
			r.Delete("/{id}", itemHandler.DeleteItem)
		})

		// 管理API（管理者ごとのレート制限付き）
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(guards.RequireAdminAPI, csrf)
			if deps.AutomationRateLimiter != nil {
				r.Use(deps.AutomationRateLimiter.Middleware)
			}

			r.Post("/emails/automations/{id}/run", adminHandler.RunAutomation)
		})
	})

	return r
}
