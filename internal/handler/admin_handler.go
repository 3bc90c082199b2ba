package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/view"
)

// gaMeasurementIDPattern はGA4の測定ID（G-XXXXXXXXXX）の形式。
var gaMeasurementIDPattern = regexp.MustCompile(`^G-[A-Z0-9]{4,20}$`)

// AdminHandler は管理画面と管理APIのハンドラー。
// ルートにはRequireAdminPage / RequireAdminAPIを適用しておくこと。
type AdminHandler struct {
	settings    SiteSettings
	automations AutomationService
	pages       *pageRenderer
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(settings SiteSettings, automations AutomationService, pages *pageRenderer) *AdminHandler {
	return &AdminHandler{
		settings:    settings,
		automations: automations,
		pages:       pages,
	}
}

type runResponse struct {
	ID           string    `json:"id"`
	AutomationID string    `json:"automation_id"`
	TriggeredBy  string    `json:"triggered_by"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

type runAutomationResponse struct {
	OK  bool        `json:"ok"`
	Run runResponse `json:"run"`
}

// Dashboard は管理画面を表示する。
// GET /app/admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := view.AdminData{Saved: r.URL.Query().Get("saved") == "1"}
	h.render(w, r, http.StatusOK, data)
}

// SaveSettings はGA測定IDを保存する。空文字列は設定の削除として扱う。
// POST /app/admin/settings
func (h *AdminHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(strings.TrimSpace(r.PostFormValue("ga_measurement_id")))
	if id != "" && !gaMeasurementIDPattern.MatchString(id) {
		h.render(w, r, http.StatusBadRequest, view.AdminData{
			SettingsError: "Measurement ID must look like G-XXXXXXXXXX.",
		})
		return
	}

	if err := h.settings.SetGAMeasurementID(r.Context(), id); err != nil {
		h.pages.serverError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "site setting updated",
		slog.String("key", model.SettingKeyGAMeasurementID),
		slog.String("user_id", middleware.UserFromContext(r.Context()).ID),
	)
	http.Redirect(w, r, "/app/admin?saved=1", http.StatusSeeOther)
}

// render は現在の設定値と自動化一覧を読み込んで管理画面を描画する。
func (h *AdminHandler) render(w http.ResponseWriter, r *http.Request, status int, data view.AdminData) {
	ctx := r.Context()
	p := h.pages.page(r, "Admin")
	data.GAMeasurementID = p.GAMeasurementID

	automations, err := h.automations.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list email automations", slog.String("error", err.Error()))
		data.AutomationError = "Failed to load automations."
	}
	data.Automations = automations

	view.Render(w, r, status, view.Admin(p, data))
}

// RunAutomation はメール自動化を手動実行する。
// POST /api/admin/emails/automations/{id}/run
func (h *AdminHandler) RunAutomation(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteUnauthorized(w)
		return
	}

	// 実行履歴のtriggered_byはユーザーIDで記録する
	run, err := h.automations.Run(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr.Message)
			return
		}
		slog.ErrorContext(r.Context(), "failed to run automation",
			slog.String("automation_id", chi.URLParam(r, "id")),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, "Failed to run automation")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, runAutomationResponse{
		OK: true,
		Run: runResponse{
			ID:           run.ID,
			AutomationID: run.AutomationID,
			TriggeredBy:  run.TriggeredBy,
			Status:       string(run.Status),
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
		},
	})
}
