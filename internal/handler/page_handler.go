package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/fibi-app/fibi/internal/item"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/view"
)

// PageHandler はログインユーザー向けのページハンドラー。
// ルートにはRequirePageSessionを適用しておくこと。
type PageHandler struct {
	items ItemService
	pages *pageRenderer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(items ItemService, pages *pageRenderer) *PageHandler {
	return &PageHandler{items: items, pages: pages}
}

// Dashboard はアイテム一覧を表示する。
// GET /app
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	items, err := h.items.List(r.Context(), user.ID)
	if err != nil {
		h.pages.serverError(w, r, err)
		return
	}
	view.Render(w, r, http.StatusOK, view.Dashboard(h.pages.page(r, "My items"), items))
}

// AddForm はアイテム追加フォームを表示する。
// GET /add?url=...&title=...
//
// 共有メニューから開かれた場合に備え、url・title・textクエリで入力値を補完する。
func (h *PageHandler) AddForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := view.ItemForm{URL: q.Get("url"), Title: q.Get("title")}
	if form.URL == "" {
		if u, err := url.Parse(q.Get("text")); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			form.URL = u.String()
		}
	}
	view.Render(w, r, http.StatusOK, view.AddItem(h.pages.page(r, "Add item"), form))
}

// AddSubmit はフォームからアイテムを作成し、詳細ページへリダイレクトする。
// POST /add
func (h *PageHandler) AddSubmit(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	in := item.CreateInput{
		URL:   r.PostFormValue("url"),
		Title: r.PostFormValue("title"),
		Notes: r.PostFormValue("notes"),
	}

	created, err := h.items.Create(r.Context(), user.ID, in)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			h.pages.serverError(w, r, err)
			return
		}
		form := view.ItemForm{URL: in.URL, Title: in.Title, Notes: in.Notes, Error: apiErr.Message}
		view.Render(w, r, http.StatusBadRequest, view.AddItem(h.pages.page(r, "Add item"), form))
		return
	}

	http.Redirect(w, r, "/item/"+url.PathEscape(created.ID), http.StatusSeeOther)
}

// ItemDetail はアイテムの詳細を表示する。存在しない・他ユーザーのアイテムは404ページ。
// GET /item/{id}
func (h *PageHandler) ItemDetail(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	it, err := h.items.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if isAPIErrorCode(err, model.ErrCodeItemNotFound) {
			h.pages.notFound(w, r)
			return
		}
		h.pages.serverError(w, r, err)
		return
	}
	view.Render(w, r, http.StatusOK, view.ItemDetail(h.pages.page(r, it.DisplayTitle()), it))
}

// DeleteItem はアイテムを削除し、一覧へリダイレクトする。
// POST /item/{id}/delete
func (h *PageHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	if err := h.items.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		if isAPIErrorCode(err, model.ErrCodeItemNotFound) {
			h.pages.notFound(w, r)
			return
		}
		h.pages.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, defaultRedirect, http.StatusSeeOther)
}

// HowTo は使い方ページを表示する。
// GET /app/how-to
func (h *PageHandler) HowTo(w http.ResponseWriter, r *http.Request) {
	view.Render(w, r, http.StatusOK, view.HowTo(h.pages.page(r, "How to")))
}
