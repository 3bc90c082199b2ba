package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponseBody はAPIエラーレスポンスの形式。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// MessageUnauthorized は未認証・権限不足時にAPIが返すメッセージ。
const MessageUnauthorized = "Unauthorized"

// WriteJSON は値をJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteErrorResponse は {"error": message} 形式のエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponseBody{Error: message})
}

// WriteUnauthorized は401 {"error":"Unauthorized"} を書き込む。
func WriteUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, MessageUnauthorized)
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, "Internal Server Error")
}
