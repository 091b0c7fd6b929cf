package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hitoshi/newswire/internal/model"
)

// NewAdminTokenMiddleware は管理APIのBearerトークン認証ミドルウェアを返す。
// expectedTokenが空の場合は管理APIを全面的に拒否する
// （トークン未設定のデプロイで管理APIが無防備に開くのを防ぐ）。
func NewAdminTokenMiddleware(expectedToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedToken == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// タイミング攻撃を避けるため定数時間比較を使う
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
