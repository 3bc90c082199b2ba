package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fibi-app/fibi/internal/item"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// ItemHandler はアイテムのJSON APIハンドラー。
type ItemHandler struct {
	service ItemService
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemService) *ItemHandler {
	return &ItemHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

type itemResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url,omitempty"`
	Price     string    `json:"price,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type itemListResponse struct {
	Items []itemResponse `json:"items"`
}

type createItemRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Notes string `json:"notes"`
}

func toItemResponse(it *model.Item) itemResponse {
	return itemResponse{
		ID:        it.ID,
		URL:       it.URL,
		Title:     it.Title,
		ImageURL:  it.ImageURL,
		Price:     it.Price,
		Notes:     it.Notes,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

// ListItems はユーザーのアイテム一覧を返す。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	items, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := itemListResponse{Items: make([]itemResponse, len(items))}
	for i, it := range items {
		resp.Items[i] = toItemResponse(it)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// CreateItem はアイテムを作成する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), userID, item.CreateInput{
		URL:   req.URL,
		Title: req.Title,
		Notes: req.Notes,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/items/"+created.ID)
	middleware.WriteJSON(w, http.StatusCreated, toItemResponse(created))
}

// GetItem はアイテムを返す。他ユーザーのアイテムは404として扱う。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	it, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toItemResponse(it))
}

// DeleteItem はアイテムを削除する。
// DELETE /api/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
