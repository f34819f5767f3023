package middleware

import (
	"net/http"

	"github.com/hitoshi/devdash/internal/model"
)

// NewBodyLimitMiddleware はリクエストボディの最大サイズを制限するミドルウェアを返す。
// Content-Length で超過が分かる場合は413を返し、それ以外は読み込み時にエラーにする。
func NewBodyLimitMiddleware(limit int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError())
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
