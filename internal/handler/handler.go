// Package handler はページとJSON APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/fibi-app/fibi/internal/item"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/view"
)

// defaultRedirect はリダイレクト先が指定されていない、または不正な場合の遷移先。
const defaultRedirect = "/app"

// AuthService は認証ハンドラーが必要とするサービスインターフェース。
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SendMagicLink(ctx context.Context, email, redirectTo string) (string, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ItemService はアイテムハンドラーが必要とするサービスインターフェース。
type ItemService interface {
	List(ctx context.Context, userID string) ([]*model.Item, error)
	Get(ctx context.Context, userID, id string) (*model.Item, error)
	Create(ctx context.Context, userID string, in item.CreateInput) (*model.Item, error)
	Delete(ctx context.Context, userID, id string) error
}

// AutomationService は管理画面のメール自動化操作のインターフェース。
type AutomationService interface {
	List(ctx context.Context) ([]model.AutomationWithLastRun, error)
	Run(ctx context.Context, automationID, triggeredBy string) (*model.AutomationRun, error)
}

// SiteSettings はサイト設定の読み書きインターフェース。
type SiteSettings interface {
	GAMeasurementID(ctx context.Context) (string, error)
	SetGAMeasurementID(ctx context.Context, id string) error
}

// SanitizeRedirect はログイン後のリダイレクト先をサイト内の相対パスに制限する。
// "/" で始まらないもの、"//" や "/\" で始まるもの（別オリジンへの遷移）は /app に置き換える。
// ブラウザは制御文字や空白を取り除いてから解釈するため、それらを含むものも拒否する。
func SanitizeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return defaultRedirect
	}
	if strings.IndexFunc(target, func(r rune) bool { return unicode.IsControl(r) || unicode.IsSpace(r) }) >= 0 {
		return defaultRedirect
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return defaultRedirect
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return defaultRedirect
	}
	return target
}

// pageRenderer はページ共通のレイアウト情報を組み立てる。
type pageRenderer struct {
	settings SiteSettings
	admins   middleware.AdminChecker
}

// page はリクエストからレイアウト情報を組み立てる。
// GA測定IDやロールの取得に失敗してもページ描画は継続する。
func (p *pageRenderer) page(r *http.Request, title string) view.Page {
	ctx := r.Context()
	pg := view.Page{
		Title:     title,
		User:      middleware.UserFromContext(ctx),
		CSRFToken: middleware.CSRFTokenFromContext(ctx),
	}

	if p.settings != nil {
		id, err := p.settings.GAMeasurementID(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to load GA measurement id", slog.String("error", err.Error()))
		}
		pg.GAMeasurementID = id
	}

	if pg.User != nil && p.admins != nil {
		ok, err := p.admins.IsAdmin(ctx, pg.User.ID)
		if err != nil {
			slog.WarnContext(ctx, "failed to check admin role for navigation",
				slog.String("user_id", pg.User.ID),
				slog.String("error", err.Error()),
			)
		}
		pg.IsAdmin = ok
	}
	return pg
}

func (p *pageRenderer) notFound(w http.ResponseWriter, r *http.Request) {
	view.Render(w, r, http.StatusNotFound, view.NotFound(p.page(r, "Not found")))
}

func (p *pageRenderer) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "page handler failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	view.Render(w, r, http.StatusInternalServerError, view.ServerError(p.page(r, "Error")))
}

// NotFound はルートが存在しない場合のハンドラー。APIはJSON、それ以外は404ページを返す。
func (p *pageRenderer) NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "Not Found")
		return
	}
	p.notFound(w, r)
}

// handleServiceError はサービス層から返されたエラーをJSONエラーレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidURL, model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeItemNotFound, model.ErrCodeAutomationNotFound:
		return http.StatusNotFound
	case model.ErrCodeAutomationDisabled:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// isAPIErrorCode はerrが指定コードのAPIErrorかどうかを判定する。
func isAPIErrorCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
