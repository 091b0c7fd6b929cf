package realtime

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/hitoshi/newswire/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestHub() *Hub {
	var buf bytes.Buffer
	return NewHub(nil, newTestLogger(&buf))
}

// drainFrames はセッションの送信バッファに積まれたフレームを全件取り出す。
func drainFrames(s *Session) []ServerFrame {
	var frames []ServerFrame
	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	h := newTestHub()

	session := h.Register()
	if session.State() != StateConnected {
		t.Errorf("State = %q, want %q", session.State(), StateConnected)
	}
	if h.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", h.SessionCount())
	}

	h.Unregister(session)
	if session.State() != StateDisconnected {
		t.Errorf("State = %q, want %q", session.State(), StateDisconnected)
	}
	if h.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", h.SessionCount())
	}
}

func TestHub_UnregisterTwiceIsHarmless(t *testing.T) {
	h := newTestHub()
	session := h.Register()

	h.Unregister(session)
	h.Unregister(session)

	if h.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", h.SessionCount())
	}
}

func TestHub_BroadcastToSubscriber(t *testing.T) {
	h := newTestHub()
	session := h.Register()
	h.Subscribe(session, "nikkei")

	h.Broadcast([]model.FeedItem{
		{Source: "nikkei", ExternalID: "a", Title: "新着A"},
	})

	frames := drainFrames(session)
	if len(frames) != 1 {
		t.Fatalf("受信フレーム数 = %d, want 1", len(frames))
	}
	if frames[0].Type != "new-item" {
		t.Errorf("Type = %q, want %q", frames[0].Type, "new-item")
	}
	if frames[0].Channel != "nikkei" {
		t.Errorf("Channel = %q, want %q", frames[0].Channel, "nikkei")
	}
	if frames[0].Item == nil || frames[0].Item.ExternalID != "a" {
		t.Errorf("Item = %v, want ExternalID=a", frames[0].Item)
	}
}

func TestHub_BroadcastFiltersBySource(t *testing.T) {
	h := newTestHub()
	nikkei := h.Register()
	reuters := h.Register()
	h.Subscribe(nikkei, "nikkei")
	h.Subscribe(reuters, "reuters")

	h.Broadcast([]model.FeedItem{
		{Source: "nikkei", ExternalID: "a", Title: "新着A"},
	})

	if frames := drainFrames(nikkei); len(frames) != 1 {
		t.Errorf("nikkei購読者の受信フレーム数 = %d, want 1", len(frames))
	}
	if frames := drainFrames(reuters); len(frames) != 0 {
		t.Errorf("reuters購読者の受信フレーム数 = %d, want 0", len(frames))
	}
}

func TestHub_BroadcastSkipsUnsubscribed(t *testing.T) {
	h := newTestHub()
	session := h.Register()
	h.Subscribe(session, "nikkei")
	h.Unsubscribe(session, "nikkei")

	h.Broadcast([]model.FeedItem{
		{Source: "nikkei", ExternalID: "a", Title: "新着A"},
	})

	if frames := drainFrames(session); len(frames) != 0 {
		t.Errorf("購読解除後の受信フレーム数 = %d, want 0", len(frames))
	}
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	h := newTestHub()
	session := h.Register()
	h.Subscribe(session, "nikkei")

	// 送信バッファの容量を超えて配信する。超過分は破棄され、
	// Broadcastはブロックしない。
	items := make([]model.FeedItem, defaultSendBuffer+10)
	for i := range items {
		items[i] = model.FeedItem{Source: "nikkei", ExternalID: string(rune('a' + i%26)), Title: "新着"}
	}
	h.Broadcast(items)

	frames := drainFrames(session)
	if len(frames) != defaultSendBuffer {
		t.Errorf("受信フレーム数 = %d, want %d（超過分は破棄）", len(frames), defaultSendBuffer)
	}
}

func TestHub_BroadcastAfterUnregisterDoesNotPanic(t *testing.T) {
	h := newTestHub()
	session := h.Register()
	h.Subscribe(session, "nikkei")
	h.Unregister(session)

	// 解除済みセッションへの配信が発生しないこと
	h.Broadcast([]model.FeedItem{
		{Source: "nikkei", ExternalID: "a", Title: "新着A"},
	})
}

func TestHub_SubscribeAfterUnregisterIsIgnored(t *testing.T) {
	h := newTestHub()
	session := h.Register()
	h.Unregister(session)

	h.Subscribe(session, "nikkei")
	if h.SubscriberCount("nikkei") != 0 {
		t.Errorf("SubscriberCount = %d, want 0（解除済みセッションは購読不可）", h.SubscriberCount("nikkei"))
	}
}

func TestHub_MultipleSubscriptionsPerSession(t *testing.T) {
	h := newTestHub()
	session := h.Register()
	h.Subscribe(session, "nikkei")
	h.Subscribe(session, "reuters")

	h.Broadcast([]model.FeedItem{
		{Source: "nikkei", ExternalID: "a", Title: "A"},
		{Source: "reuters", ExternalID: "b", Title: "B"},
	})

	if frames := drainFrames(session); len(frames) != 2 {
		t.Errorf("受信フレーム数 = %d, want 2", len(frames))
	}
}
