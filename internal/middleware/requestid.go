package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLength は受け入れる外部リクエストIDの最大長。
const maxRequestIDLength = 128

// NewRequestIDMiddleware はリクエストIDをコンテキストとレスポンスヘッダーに設定するミドルウェアを返す。
// 受信したX-Request-IDが妥当であれば引き継ぎ、なければUUIDを生成する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext はコンテキストのリクエストIDを返す。未設定の場合は空文字列。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
