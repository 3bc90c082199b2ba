// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// fallbackSiteURL はSITE_URLもVERCEL_URLも未設定の場合に使用するベースURL。
const fallbackSiteURL = "https://fibi.app"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// 認証プロバイダー（Supabase互換のGoTrue）
	SupabaseURL       string `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey   string `envconfig:"SUPABASE_ANON_KEY" required:"true"`
	SupabaseJWTSecret string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	// サイトURL解決用
	SiteURL   string `envconfig:"SITE_URL"`
	VercelURL string `envconfig:"VERCEL_URL"`

	// Cookie
	CookieDomain string `envconfig:"COOKIE_DOMAIN"`

	// /api/version が参照するパッケージマニフェスト
	VersionManifestPath string `envconfig:"VERSION_MANIFEST_PATH" default:"package.json"`

	// Email automation
	AutomationWebhookURL    string        `envconfig:"EMAIL_AUTOMATION_WEBHOOK_URL"`
	AutomationWebhookSecret string        `envconfig:"EMAIL_AUTOMATION_WEBHOOK_SECRET"`
	AutomationTimeout       time.Duration `envconfig:"EMAIL_AUTOMATION_TIMEOUT" default:"15s"`
	AutomationRunRetention  int           `envconfig:"AUTOMATION_RUN_RETENTION_DAYS" default:"90"`
	RateLimitAutomationRuns int           `envconfig:"RATE_LIMIT_AUTOMATION_RUNS" default:"10"`

	// Unfurl
	UnfurlEnabled bool          `envconfig:"UNFURL_ENABLED" default:"true"`
	UnfurlTimeout time.Duration `envconfig:"UNFURL_TIMEOUT" default:"5s"`
	UnfurlMaxSize int64         `envconfig:"UNFURL_MAX_SIZE" default:"1048576"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")
	return &cfg, nil
}

// BaseURL はサイトの正規URLを解決する。
// SITE_URL、VERCEL_URL（https://を付与）、固定のフォールバックの順に優先する。
// 末尾のスラッシュは取り除く。
func (c *Config) BaseURL() string {
	return ResolveBaseURL(c.SiteURL, c.VercelURL)
}

// CookieSecure はCookieにSecure属性を付与すべきかを返す。
func (c *Config) CookieSecure() bool {
	return strings.HasPrefix(c.BaseURL(), "https://")
}

// ResolveBaseURL はサイトURLとデプロイ先URLからベースURLを決定する。
func ResolveBaseURL(siteURL, deploymentURL string) string {
	if v := strings.TrimSpace(siteURL); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(deploymentURL); v != "" {
		v = strings.TrimPrefix(strings.TrimPrefix(v, "https://"), "http://")
		return "https://" + strings.TrimRight(v, "/")
	}
	return fallbackSiteURL
}
