// Package app はFiBiの起動処理とコンポーネントのワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fibi-app/fibi/internal/auth"
	"github.com/fibi-app/fibi/internal/automation"
	"github.com/fibi-app/fibi/internal/config"
	"github.com/fibi-app/fibi/internal/database"
	"github.com/fibi-app/fibi/internal/handler"
	"github.com/fibi-app/fibi/internal/item"
	"github.com/fibi-app/fibi/internal/logger"
	"github.com/fibi-app/fibi/internal/metrics"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/repository"
	"github.com/fibi-app/fibi/internal/security"
	"github.com/fibi-app/fibi/internal/unfurl"
	"github.com/fibi-app/fibi/internal/version"
	"github.com/fibi-app/fibi/internal/worker/cleanup"
)

const (
	dbConnectTimeout = 10 * time.Second
	shutdownTimeout  = 30 * time.Second
	cleanupInterval  = 24 * time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにしておく
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck("http://localhost:" + port + "/health")
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Server はHTTPハンドラーと、停止時に後片付けが必要なリソースをまとめたもの。
type Server struct {
	Handler  http.Handler
	Registry *prometheus.Registry

	limiter *middleware.RateLimiter
}

// Close はバックグラウンドのゴルーチンを停止する。
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// NewServer は設定とDB接続から全依存関係を組み立て、ルーターを構築する。
func NewServer(cfg *config.Config, db *sql.DB, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	// メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// リポジトリ
	profileRepo := repository.NewPostgresProfileRepo(db)
	settingRepo := repository.NewPostgresSiteSettingRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	automationRepo := repository.NewPostgresAutomationRepo(db)

	// 認証
	provider := auth.NewGoTrueClient(auth.GoTrueConfig{
		BaseURL: cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
	})
	authService := auth.NewService(
		provider,
		auth.NewTokenVerifier(cfg.SupabaseJWTSecret),
		profileRepo,
		collector,
	)

	// アイテム
	guard := security.NewURLGuard()
	itemOpts := []item.Option{
		item.WithLogger(log),
		item.WithUnfurlRecorder(collector),
	}
	if cfg.UnfurlEnabled {
		unfurler := unfurl.NewHTTPUnfurler(guard.NewSafeClient(cfg.UnfurlTimeout), cfg.UnfurlMaxSize, log)
		itemOpts = append(itemOpts, item.WithUnfurler(unfurler))
	}
	itemService := item.NewService(itemRepo, guard, itemOpts...)

	// メール自動化
	var dispatcher automation.Dispatcher
	if cfg.AutomationWebhookURL != "" {
		dispatcher = automation.NewWebhookDispatcher(cfg.AutomationWebhookURL, cfg.AutomationWebhookSecret, cfg.AutomationTimeout)
	} else {
		log.Warn("EMAIL_AUTOMATION_WEBHOOK_URL is not set, automation runs will only be logged")
		dispatcher = automation.NewLogDispatcher(log)
	}
	runner := automation.NewRunner(automationRepo, dispatcher, collector)

	limiter := middleware.NewRateLimiter("automation_run", middleware.PerMinute(cfg.RateLimitAutomationRuns))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger: log,

		SessionResolver:       authService,
		AdminChecker:          authService,
		GuardRecorder:         collector,
		HTTPRecorder:          collector,
		AutomationRateLimiter: limiter,
		Cookies: auth.CookieConfig{
			Secure: cfg.CookieSecure(),
			Domain: cfg.CookieDomain,
		},
		BaseURL: cfg.BaseURL(),

		AuthService:       authService,
		ItemService:       itemService,
		AutomationService: runner,
		SiteSettings:      handler.NewSiteSettingsAdapter(settingRepo),
		Version:           version.NewReader(cfg.VersionManifestPath, log),
		DB:                db,

		MetricsHandler: metrics.Handler(registry),
	})

	return &Server{
		Handler:  router,
		Registry: registry,
		limiter:  limiter,
	}
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	srv := NewServer(cfg, db, slog.Default())
	defer srv.Close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// 自動化のWebhook呼び出しを待てるだけの余裕を持たせる
		WriteTimeout: cfg.AutomationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 自動化の実行履歴を日次でクリーンアップし、シグナル受信で停止する。
func runWorker(cfg *config.Config) error {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := cleanup.NewCleanupJob(db, slog.Default(), cfg.AutomationRunRetention)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	// シグナルを受信するまでブロックする
	job.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はすべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	v, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(v)))
	return nil
}

// runHealthcheck は /health にリクエストを送り、200以外ならエラーを返す。
// distroless環境でのDockerヘルスチェック用。
func runHealthcheck(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
