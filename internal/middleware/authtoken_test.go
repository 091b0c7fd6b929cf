package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminTokenMiddleware_ValidToken(t *testing.T) {
	mw := NewAdminTokenMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/x/refresh", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAdminTokenMiddleware_WrongToken(t *testing.T) {
	mw := NewAdminTokenMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/x/refresh", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminTokenMiddleware_MissingHeader(t *testing.T) {
	mw := NewAdminTokenMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/x/refresh", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminTokenMiddleware_NonBearerScheme(t *testing.T) {
	mw := NewAdminTokenMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/x/refresh", nil)
	req.Header.Set("Authorization", "Basic secret-token")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminTokenMiddleware_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	// トークン未設定のデプロイでは管理APIを全面拒否する
	mw := NewAdminTokenMiddleware("")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/x/refresh", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
