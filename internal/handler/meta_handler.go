package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/seo"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// VersionReader はアプリケーションのバージョンを返す。
type VersionReader interface {
	Version() string
}

// Pinger はDBの疎通確認を行う。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MetaHandler は認証不要のメタデータエンドポイントのハンドラー。
type MetaHandler struct {
	baseURL  string
	settings SiteSettings
	version  VersionReader
	db       Pinger
}

// NewMetaHandler はMetaHandlerを生成する。
func NewMetaHandler(baseURL string, settings SiteSettings, version VersionReader, db Pinger) *MetaHandler {
	return &MetaHandler{
		baseURL:  baseURL,
		settings: settings,
		version:  version,
		db:       db,
	}
}

type siteMetaResponse struct {
	GAMeasurementID *string `json:"gaMeasurementId"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// SiteMeta はクライアントが必要とするサイト設定を返す。
// 取得に失敗した場合もnullを返し、常に200で応答する。
// GET /api/site-meta
func (h *MetaHandler) SiteMeta(w http.ResponseWriter, r *http.Request) {
	var resp siteMetaResponse

	id, err := h.settings.GAMeasurementID(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "failed to load site meta", slog.String("error", err.Error()))
	} else if id != "" {
		resp.GAMeasurementID = &id
	}

	w.Header().Set("Cache-Control", "no-store")
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Version はマニフェストから読み取ったバージョンを返す。常に200で応答する。
// GET /api/version
func (h *MetaHandler) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	middleware.WriteJSON(w, http.StatusOK, versionResponse{Version: h.version.Version()})
}

// Robots はrobots.txtを返す。
// GET /robots.txt
func (h *MetaHandler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(seo.Robots(h.baseURL)))
}

// Sitemap はsitemap.xmlを返す。
// GET /sitemap.xml
func (h *MetaHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	body, err := seo.Sitemap(h.baseURL)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build sitemap", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(body)
}

// Health はDBへの疎通を確認する。
// GET /health
func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
