// Package view はサーバーレンダリングするHTMLページをtemplコンポーネントとして提供する。
//
// ページは*.templに記述し、templ generateで*_templ.goを生成する。
package view

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"embed"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/a-h/templ"

	"github.com/fibi-app/fibi/internal/model"
)

const siteName = "FiBi"

//go:embed static
var staticFiles embed.FS

// Static は/static/配下で配信する静的ファイル。
func Static() fs.FS {
	sub, _ := fs.Sub(staticFiles, "static")
	return sub
}

// Page は全ページ共通のレイアウト情報。
type Page struct {
	Title           string
	User            *model.User
	IsAdmin         bool
	CSRFToken       string
	GAMeasurementID string
}

// LoginForm はログインページの表示内容。
type LoginForm struct {
	Email    string
	Redirect string
	Error    string
}

// ItemForm は追加フォームの入力値とエラー表示。
type ItemForm struct {
	URL   string
	Title string
	Notes string
	Error string
}

// AdminData は管理画面の表示内容。
type AdminData struct {
	GAMeasurementID string
	Saved           bool
	SettingsError   string
	Automations     []model.AutomationWithLastRun
	AutomationError string
}

// Render はコンポーネントを指定ステータスで書き出す。
func Render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

func pageTitle(title string) string {
	if title == "" {
		return siteName
	}
	return title + " | " + siteName
}

func gtagURL(measurementID string) string {
	return "https://www.googletagmanager.com/gtag/js?id=" + url.QueryEscape(measurementID)
}

func itemURL(id string) templ.SafeURL {
	return templ.SafeURL("/item/" + url.PathEscape(id))
}

func deleteURL(id string) templ.SafeURL {
	return templ.SafeURL("/item/" + url.PathEscape(id) + "/delete")
}

func runURL(automationID string) string {
	return "/api/admin/emails/automations/" + url.PathEscape(automationID) + "/run"
}

// imageSrc はjavascript:などの危険なスキームを無効化した画像URLを返す。
func imageSrc(raw string) string {
	return string(templ.URL(raw))
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
