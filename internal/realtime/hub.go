package realtime

import (
	"log/slog"
	"sync"

	"github.com/hitoshi/newswire/internal/metrics"
	"github.com/hitoshi/newswire/internal/model"
)

// defaultSendBuffer はセッション1つあたりの送信バッファサイズ。
const defaultSendBuffer = 64

// Hub はセッションの登録・購読・配信を管理する。
// 配信チャンネルはソースIDをキーとし、セッションは任意の数の
// ソースを購読できる。全操作は並行安全。
type Hub struct {
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	sendBuffer int

	mu            sync.Mutex
	sessions      map[*Session]bool
	subscriptions map[string]map[*Session]bool
}

// NewHub はHubの新しいインスタンスを生成する。
func NewHub(collector metrics.MetricsCollector, logger *slog.Logger) *Hub {
	return &Hub{
		collector:     collector,
		logger:        logger,
		sendBuffer:    defaultSendBuffer,
		sessions:      make(map[*Session]bool),
		subscriptions: make(map[string]map[*Session]bool),
	}
}

// Register は新しいセッションを生成してハブに登録する。
// 登録直後のセッションはどのソースも購読していない。
func (h *Hub) Register() *Session {
	session := newSession(h.sendBuffer)

	h.mu.Lock()
	h.sessions[session] = true
	count := len(h.sessions)
	h.mu.Unlock()

	session.setState(StateConnected)

	if h.collector != nil {
		h.collector.SetLiveSessions(count)
	}
	h.logger.Info("セッションを登録しました",
		slog.String("session_id", session.id),
		slog.Int("live_sessions", count),
	)

	return session
}

// Unregister はセッションをハブから除去し、全購読を解除して
// 送信チャンネルをクローズする。二重呼び出しは無害。
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	if !h.sessions[session] {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, session)
	for source, subscribers := range h.subscriptions {
		delete(subscribers, session)
		if len(subscribers) == 0 {
			delete(h.subscriptions, source)
		}
	}
	// 配信（Broadcast）もロック下で行われるため、クローズと
	// 送信が競合することはない。
	session.setState(StateDisconnected)
	close(session.send)
	count := len(h.sessions)
	h.mu.Unlock()

	if h.collector != nil {
		h.collector.SetLiveSessions(count)
	}
	h.logger.Info("セッションを解除しました",
		slog.String("session_id", session.id),
		slog.Int("live_sessions", count),
	)
}

// Subscribe はセッションを指定ソースの配信チャンネルに加える。
// 既に購読済みの場合は何もしない。
func (h *Hub) Subscribe(session *Session, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.sessions[session] {
		return
	}
	subscribers, ok := h.subscriptions[source]
	if !ok {
		subscribers = make(map[*Session]bool)
		h.subscriptions[source] = subscribers
	}
	subscribers[session] = true
}

// Unsubscribe はセッションを指定ソースの配信チャンネルから外す。
func (h *Hub) Unsubscribe(session *Session, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.subscriptions[source]
	if !ok {
		return
	}
	delete(subscribers, session)
	if len(subscribers) == 0 {
		delete(h.subscriptions, source)
	}
}

// Broadcast は新着記事を各記事のソースを購読中のセッションへ配信する。
// 送信バッファが満杯のセッションへのフレームは破棄される（at-most-once）。
// 購読者のいないソースの記事は単に捨てられる。
func (h *Hub) Broadcast(items []model.FeedItem) {
	if len(items) == 0 {
		return
	}

	delivered := 0
	dropped := 0

	// deliverはノンブロッキングなのでロックを保持したまま実行できる。
	// Unregisterによるチャンネルのクローズも同じロック下で行われる。
	h.mu.Lock()
	for i := range items {
		item := items[i]
		frame := ServerFrame{Type: "new-item", Channel: item.Source, Item: &item}
		for session := range h.subscriptions[item.Source] {
			if session.deliver(frame) {
				delivered++
			} else {
				dropped++
			}
		}
	}
	h.mu.Unlock()

	if h.collector != nil {
		h.collector.RecordBroadcast(delivered)
	}
	if dropped > 0 {
		h.logger.Warn("送信バッファ満杯または切断によりフレームを破棄しました",
			slog.Int("dropped", dropped),
		)
	}
	h.logger.Info("新着記事を配信しました",
		slog.Int("items", len(items)),
		slog.Int("delivered", delivered),
	)
}

// SessionCount は登録中のセッション数を返す。
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// SubscriberCount は指定ソースの購読セッション数を返す。
func (h *Hub) SubscriberCount(source string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscriptions[source])
}
