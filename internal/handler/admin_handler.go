package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newswire/internal/ingest"
	"github.com/hitoshi/newswire/internal/middleware"
	"github.com/hitoshi/newswire/internal/model"
)

// Refresher はソースの即時リフレッシュのインターフェース。
type Refresher interface {
	// RefreshNow は指定ソースを即時フェッチし、初回挿入された記事数を返す。
	RefreshNow(ctx context.Context, sourceID string) (int, error)
}

// AdminHandler は管理APIのHTTPハンドラー。
type AdminHandler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(refresher Refresher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		refresher: refresher,
		logger:    logger,
	}
}

// refreshResponse はリフレッシュ結果のレスポンス。
type refreshResponse struct {
	Inserted int `json:"inserted"`
}

// RefreshSource は指定ソースを即時フェッチする。
// POST /admin/sources/{id}/refresh
// 未知のソースは404、フェッチ実行中のソースは409を返す。
func (h *AdminHandler) RefreshSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")

	inserted, err := h.refresher.RefreshNow(r.Context(), sourceID)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnknownSource):
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(sourceID))
		case errors.Is(err, ingest.ErrSourceBusy):
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewSourceBusyError(sourceID))
		default:
			h.logger.Error("手動リフレッシュに失敗しました",
				slog.String("source", sourceID),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
		}
		return
	}

	h.logger.Info("手動リフレッシュが完了しました",
		slog.String("source", sourceID),
		slog.Int("inserted", inserted),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(refreshResponse{Inserted: inserted})
}
