package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newswire/internal/model"
)

// Broadcaster は新着記事の配信先インターフェース。
type Broadcaster interface {
	Broadcast(items []model.FeedItem)
}

// Dispatcher は新着記事を有界バッファに蓄積し、サイズ閾値または
// 時間間隔でまとめてハブへフラッシュする。フェッチサイクルの
// バースト的な新着を1回の配信に集約し、セッションごとの
// フレーム数を抑える。
type Dispatcher struct {
	broadcaster   Broadcaster
	logger        *slog.Logger
	flushSize     int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []model.FeedItem
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// flushSizeが0以下の場合はデフォルト値32、flushIntervalが0以下の
// 場合はデフォルト値1秒を使用する。
func NewDispatcher(
	broadcaster Broadcaster,
	logger *slog.Logger,
	flushSize int,
	flushInterval time.Duration,
) *Dispatcher {
	if flushSize <= 0 {
		flushSize = 32
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Dispatcher{
		broadcaster:   broadcaster,
		logger:        logger,
		flushSize:     flushSize,
		flushInterval: flushInterval,
		buffer:        make([]model.FeedItem, 0, flushSize),
	}
}

// Publish は新着記事をバッファに追加する。バッファがサイズ閾値に
// 達した場合はその場でフラッシュする。ingest.ItemPublisherを実装する。
func (d *Dispatcher) Publish(items []model.FeedItem) {
	if len(items) == 0 {
		return
	}

	d.mu.Lock()
	d.buffer = append(d.buffer, items...)
	var pending []model.FeedItem
	if len(d.buffer) >= d.flushSize {
		pending = d.buffer
		d.buffer = make([]model.FeedItem, 0, d.flushSize)
	}
	d.mu.Unlock()

	if pending != nil {
		d.broadcaster.Broadcast(pending)
	}
}

// Start は時間間隔によるフラッシュループを実行する。
// コンテキストのキャンセル時は残りのバッファをフラッシュしてから戻る。
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	d.logger.Info("配信ディスパッチャを開始しました",
		slog.Int("flush_size", d.flushSize),
		slog.Duration("flush_interval", d.flushInterval),
	)

	for {
		select {
		case <-ctx.Done():
			d.Flush()
			d.logger.Info("配信ディスパッチャを停止しました")
			return
		case <-ticker.C:
			d.Flush()
		}
	}
}

// Flush はバッファ内の全記事をハブへ配信する。バッファが空なら何もしない。
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	if len(d.buffer) == 0 {
		d.mu.Unlock()
		return
	}
	pending := d.buffer
	d.buffer = make([]model.FeedItem, 0, d.flushSize)
	d.mu.Unlock()

	d.broadcaster.Broadcast(pending)
}
