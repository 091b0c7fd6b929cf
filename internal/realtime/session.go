// Package realtime は新着記事のリアルタイム配信を提供する。
// セッション管理ハブ、WebSocket接続処理、バッファリング付き
// ディスパッチャを含む。
package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/newswire/internal/model"
)

// SessionState はセッションのライフサイクル状態を表す。
type SessionState string

const (
	// StateConnecting は接続確立中（登録前）の状態。
	StateConnecting SessionState = "connecting"
	// StateConnected はハブに登録済みで購読を受け付ける状態。
	StateConnected SessionState = "connected"
	// StateDisconnected は切断済みの状態。以降フレームは配信されない。
	StateDisconnected SessionState = "disconnected"
)

// ClientFrame はクライアントから受信する購読制御フレーム。
// channelはソースIDと1対1に対応する配信チャンネル名。
type ClientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// ServerFrame はクライアントへ送信するフレーム。
// 新着記事の通知（type=new-item）とエラー通知（type=error）に使う。
type ServerFrame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Item    *model.FeedItem `json:"item,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Session はハブに接続された1つの配信セッションを表す。
// 送信はバッファ付きチャンネル経由で行い、バッファが満杯の場合は
// フレームを破棄する（at-most-once配信。遅いクライアントが
// 他のセッションの配信を遅延させない）。
type Session struct {
	id   string
	send chan ServerFrame

	mu    sync.Mutex
	state SessionState
}

// newSession は新しいセッションを生成する。
func newSession(sendBuffer int) *Session {
	return &Session{
		id:    uuid.New().String(),
		send:  make(chan ServerFrame, sendBuffer),
		state: StateConnecting,
	}
}

// ID はセッションの識別子を返す。
func (s *Session) ID() string {
	return s.id
}

// State はセッションの現在の状態を返す。
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames は配信フレームの受信チャンネルを返す。
// セッションの切断時にクローズされる。
func (s *Session) Frames() <-chan ServerFrame {
	return s.send
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// deliver はフレームをセッションの送信バッファに積む。
// バッファが満杯の場合はfalseを返してフレームを破棄する。
func (s *Session) deliver(frame ServerFrame) bool {
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}
