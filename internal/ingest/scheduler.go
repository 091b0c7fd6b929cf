package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newswire/internal/model"
)

// ErrSourceBusy は対象ソースのフェッチが既に実行中であることを表す。
var ErrSourceBusy = errors.New("ソースのフェッチが既に実行中です")

// ErrUnknownSource は設定に存在しないソースIDが指定されたことを表す。
var ErrUnknownSource = errors.New("未知のソースIDです")

// SourceFetcherService はソースフェッチの実行インターフェース。
type SourceFetcherService interface {
	// Fetch はソースをフェッチし、初回挿入だった記事を返す。
	Fetch(ctx context.Context, source model.Source) ([]model.FeedItem, error)
}

// ItemPublisher は新着記事のリアルタイム配信インターフェース。
type ItemPublisher interface {
	Publish(items []model.FeedItem)
}

// Scheduler は全ソースの定期フェッチと手動リフレッシュを調停する。
// 一定間隔のティッカーで全ソースを並行にフェッチし、ソースごとの
// 相互排他により同一ソースの同時フェッチを防ぐ。定期実行と手動
// リフレッシュは同じ排他を共有するため、重複したフェッチは
// 発生しない（スキップまたはErrSourceBusyになる）。
type Scheduler struct {
	sources   []model.Source
	fetcher   SourceFetcherService
	publisher ItemPublisher
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	sources []model.Source,
	fetcher SourceFetcherService,
	publisher ItemPublisher,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		sources:   sources,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		inflight:  make(map[string]bool),
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("フェッチスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("source_count", len(s.sources)),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("フェッチスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全ソースを並行に1回フェッチする。
// フェッチが既に実行中のソースはスキップする（待機しない）。
// 全ソースの完了を待ってから戻る。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	var wg sync.WaitGroup

	for _, source := range s.sources {
		if !s.tryAcquire(source.ID) {
			s.logger.Info("フェッチ実行中のためスキップします",
				slog.String("source", source.ID),
			)
			continue
		}

		wg.Add(1)
		go func(src model.Source) {
			defer wg.Done()
			defer s.release(src.ID)
			s.fetchAndPublish(ctx, src)
		}(source)
	}

	wg.Wait()

	s.logger.Info("フェッチサイクルが完了しました",
		slog.Int("source_count", len(s.sources)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// RefreshNow は指定ソースを即時フェッチし、初回挿入された記事数を返す。
// 管理APIからの手動リフレッシュに使用する。定期フェッチと同じ
// ソース単位の排他を共有し、実行中の場合はErrSourceBusyを返す。
func (s *Scheduler) RefreshNow(ctx context.Context, sourceID string) (int, error) {
	source, ok := s.findSource(sourceID)
	if !ok {
		return 0, ErrUnknownSource
	}

	if !s.tryAcquire(sourceID) {
		return 0, ErrSourceBusy
	}
	defer s.release(sourceID)

	inserted, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return 0, err
	}

	if len(inserted) > 0 && s.publisher != nil {
		s.publisher.Publish(inserted)
	}

	return len(inserted), nil
}

// fetchAndPublish はソースをフェッチし、新着記事を配信する。
func (s *Scheduler) fetchAndPublish(ctx context.Context, source model.Source) {
	inserted, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		s.logger.Error("ソースフェッチに失敗しました",
			slog.String("source", source.ID),
			slog.String("url", source.URL),
			slog.String("error", err.Error()),
		)
		return
	}

	if len(inserted) > 0 && s.publisher != nil {
		s.publisher.Publish(inserted)
	}
}

// findSource は設定からソースを検索する。
func (s *Scheduler) findSource(sourceID string) (model.Source, bool) {
	for _, source := range s.sources {
		if source.ID == sourceID {
			return source, true
		}
	}
	return model.Source{}, false
}

// tryAcquire はソースのフェッチ権をノンブロッキングで取得する。
// 既に実行中の場合はfalseを返す。
func (s *Scheduler) tryAcquire(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[sourceID] {
		return false
	}
	s.inflight[sourceID] = true
	return true
}

// release はソースのフェッチ権を解放する。
func (s *Scheduler) release(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, sourceID)
}
