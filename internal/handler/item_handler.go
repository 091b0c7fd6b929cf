// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/newswire/internal/middleware"
	"github.com/hitoshi/newswire/internal/model"
)

// ItemLister は記事一覧取得のインターフェース。
type ItemLister interface {
	ListRecent(ctx context.Context, source string, limit int) ([]model.FeedItem, error)
}

// ItemHandler は記事ポーリングAPIのHTTPハンドラー。
type ItemHandler struct {
	repo         ItemLister
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(repo ItemLister, logger *slog.Logger, defaultLimit, maxLimit int) *ItemHandler {
	return &ItemHandler{
		repo:         repo,
		logger:       logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// itemListResponse は記事一覧のレスポンス。
type itemListResponse struct {
	Items []model.FeedItem `json:"items"`
	Count int              `json:"count"`
}

// ListItems は新着順の記事一覧を取得する。
// GET /api/items?source=xxx&limit=nn
// sourceを省略すると全ソースが対象。limitは1..maxLimitの範囲で、
// 省略時はデフォルト値を使用する。不正なlimitは400を返す。
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > h.maxLimit {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidLimitError(raw))
			return
		}
		limit = parsed
	}

	items, err := h.repo.ListRecent(r.Context(), source, limit)
	if err != nil {
		h.logger.Error("記事一覧の取得に失敗しました",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(itemListResponse{
		Items: items,
		Count: len(items),
	})
}
