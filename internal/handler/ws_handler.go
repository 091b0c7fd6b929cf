package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/newswire/internal/realtime"
)

// WSHandler はリアルタイム配信のWebSocketハンドラー。
type WSHandler struct {
	hub      *realtime.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler はWSHandlerを生成する。
// allowedOriginが空の場合は同一オリジンのみ許可する
// （gorilla/websocketのデフォルト動作）。
func NewWSHandler(hub *realtime.Hub, logger *slog.Logger, allowedOrigin string) *WSHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if allowedOrigin != "" {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		}
	}
	return &WSHandler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Serve はHTTP接続をWebSocketにアップグレードし、セッションとして
// ハブに接続する。GET /ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocketアップグレードに失敗しました",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	realtime.ServeConn(h.hub, conn, h.logger)
}
