package realtime

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait はフレーム書き込みの許容時間。
	writeWait = 10 * time.Second
	// pongWait はクライアントからのPong応答の許容時間。
	pongWait = 60 * time.Second
	// pingPeriod はPing送信間隔。pongWaitより短くする必要がある。
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize はクライアントから受信するフレームの最大バイト数。
	maxFrameSize = 512
)

// ServeConn はWebSocket接続を1セッションとしてハブに接続し、
// 読み書きのポンプを実行する。接続が切断されるか読み取りエラーが
// 発生するまでブロックする。戻る時点でセッションは解除済み。
func ServeConn(hub *Hub, conn *websocket.Conn, logger *slog.Logger) {
	session := hub.Register()
	defer hub.Unregister(session)
	defer conn.Close()

	// 書き込みポンプ: 配信フレームとPingを送信する
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case frame, ok := <-session.send:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// 読み取りポンプ: 購読制御フレームを処理する
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket接続が異常終了しました",
					slog.String("session_id", session.ID()),
					slog.String("error", err.Error()),
				)
			}
			break
		}

		channel := strings.TrimSpace(frame.Channel)
		switch frame.Action {
		case "subscribe":
			if channel == "" {
				session.deliver(ServerFrame{Type: "error", Message: "channelが指定されていません"})
				continue
			}
			hub.Subscribe(session, channel)
		case "unsubscribe":
			if channel == "" {
				continue
			}
			hub.Unsubscribe(session, channel)
		default:
			session.deliver(ServerFrame{Type: "error", Message: "未知のアクションです: " + frame.Action})
		}
	}

	hub.Unregister(session)
	<-done
}
