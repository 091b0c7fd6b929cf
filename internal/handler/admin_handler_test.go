package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newswire/internal/ingest"
)

// mockRefresher はRefresherのテスト用モック。
type mockRefresher struct {
	refreshFunc func(ctx context.Context, sourceID string) (int, error)
}

func (m *mockRefresher) RefreshNow(ctx context.Context, sourceID string) (int, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, sourceID)
	}
	return 0, nil
}

// newAdminRouter はchiのURLパラメータを解決するためのテスト用ルーター。
func newAdminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/admin/sources/{id}/refresh", h.RefreshSource)
	return r
}

func TestRefreshSource_ReturnsInsertedCount(t *testing.T) {
	var buf bytes.Buffer
	var gotSource string
	h := NewAdminHandler(&mockRefresher{
		refreshFunc: func(ctx context.Context, sourceID string) (int, error) {
			gotSource = sourceID
			return 7, nil
		},
	}, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/nikkei/refresh", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotSource != "nikkei" {
		t.Errorf("sourceID = %q, want %q", gotSource, "nikkei")
	}

	var resp refreshResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.Inserted != 7 {
		t.Errorf("Inserted = %d, want 7", resp.Inserted)
	}
}

func TestRefreshSource_UnknownSourceReturns404(t *testing.T) {
	var buf bytes.Buffer
	h := NewAdminHandler(&mockRefresher{
		refreshFunc: func(ctx context.Context, sourceID string) (int, error) {
			return 0, ingest.ErrUnknownSource
		},
	}, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/unknown/refresh", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRefreshSource_BusySourceReturns409(t *testing.T) {
	var buf bytes.Buffer
	h := NewAdminHandler(&mockRefresher{
		refreshFunc: func(ctx context.Context, sourceID string) (int, error) {
			return 0, ingest.ErrSourceBusy
		},
	}, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/nikkei/refresh", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRefreshSource_FetchErrorReturns500(t *testing.T) {
	var buf bytes.Buffer
	h := NewAdminHandler(&mockRefresher{
		refreshFunc: func(ctx context.Context, sourceID string) (int, error) {
			return 0, errors.New("fetch failed")
		},
	}, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodPost, "/admin/sources/nikkei/refresh", nil)
	rec := httptest.NewRecorder()
	newAdminRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
