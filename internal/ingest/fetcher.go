// Package ingest はフィードの取得・正規化・保存のパイプラインを提供する。
// スケジューラ、フェッチャー、正規化、フィード自動検出を含む。
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newswire/internal/metrics"
	"github.com/hitoshi/newswire/internal/model"
)

// ItemUpserter は記事のUPSERT処理のインターフェース。
type ItemUpserter interface {
	UpsertBatch(ctx context.Context, items []model.FeedItem) ([]model.FeedItem, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// fetchState はソースごとの条件付きGET用の状態を保持する。
// resolvedURLはHTMLページから自動検出されたフィードURLのキャッシュ。
type fetchState struct {
	etag         string
	lastModified string
	resolvedURL  string
}

// Fetcher は個別ソースのHTTPフェッチ・パース・正規化・保存を行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// gofeedによるパース、フィード自動検出を実行する。
type Fetcher struct {
	upserter    ItemUpserter
	normalizer  *Normalizer
	detector    *FeedDetector
	ssrfGuard   SSRFValidator
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64

	mu     sync.Mutex
	states map[string]*fetchState
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	upserter ItemUpserter,
	normalizer *Normalizer,
	detector *FeedDetector,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		upserter:    upserter,
		normalizer:  normalizer,
		detector:    detector,
		ssrfGuard:   ssrfGuard,
		collector:   collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		states:      make(map[string]*fetchState),
	}
}

// Fetch はソースをフェッチ・パースし、正規化済み記事をUPSERTする。
// 戻り値は初回挿入だった記事のみ（リアルタイム配信の対象）。
// コンテンツ未変更（304）の場合は空を返す。
// 個々のエントリの正規化失敗はフェッチ全体を失敗させず、
// ログとメトリクスに記録してスキップする。
func (f *Fetcher) Fetch(ctx context.Context, source model.Source) ([]model.FeedItem, error) {
	start := time.Now()
	state := f.stateFor(source.ID)

	fetchURL := source.URL
	if state.resolvedURL != "" {
		fetchURL = state.resolvedURL
	}

	if err := f.ssrfGuard.ValidateURL(fetchURL); err != nil {
		f.recordFailure(source.ID, "ssrf_blocked")
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	resp, body, err := f.fetchDocument(ctx, fetchURL, state)
	if err != nil {
		f.recordFailure(source.ID, "http_error")
		return nil, err
	}

	duration := time.Since(start)

	if resp.StatusCode == http.StatusNotModified {
		f.logger.Info("ソースは未変更です（304）",
			slog.String("source", source.ID),
			slog.String("url", fetchURL),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		f.recordSuccess(source.ID, duration)
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		f.recordFailure(source.ID, "http_status")
		return nil, fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")

	// 設定されたURLがHTMLページの場合はフィードURLを自動検出して再取得
	if !f.detector.IsDirectFeed(contentType, body) && f.detector.IsHTML(contentType) {
		detected := f.detector.DetectFromHTML(body, fetchURL)
		if detected == "" || detected == fetchURL {
			f.recordFailure(source.ID, "feed_not_detected")
			return nil, fmt.Errorf("フィードを検出できませんでした: %s", fetchURL)
		}

		f.logger.Info("HTMLページからフィードURLを検出しました",
			slog.String("source", source.ID),
			slog.String("page_url", fetchURL),
			slog.String("feed_url", detected),
		)

		if err := f.ssrfGuard.ValidateURL(detected); err != nil {
			f.recordFailure(source.ID, "ssrf_blocked")
			return nil, fmt.Errorf("検出されたフィードURLのSSRF検証に失敗: %w", err)
		}

		state.resolvedURL = detected
		resp, body, err = f.fetchDocument(ctx, detected, state)
		if err != nil {
			f.recordFailure(source.ID, "http_error")
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			f.recordFailure(source.ID, "http_status")
			return nil, fmt.Errorf("検出されたフィードのHTTPステータスが不正: %d", resp.StatusCode)
		}
	}

	// ETag/Last-Modifiedを保存
	if etag := resp.Header.Get("ETag"); etag != "" {
		state.etag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		state.lastModified = lastMod
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.recordFailure(source.ID, "parse_error")
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	entries := convertGofeedItems(parsedFeed.Items)

	// 個々のエントリを正規化。失敗したエントリはスキップして継続する。
	fetchedAt := time.Now()
	items := make([]model.FeedItem, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		item, err := f.normalizer.Normalize(source.ID, entry, fetchedAt)
		if err != nil {
			skipped++
			f.logger.Warn("エントリの正規化に失敗したためスキップします",
				slog.String("source", source.ID),
				slog.String("entry_title", entry.Title),
				slog.String("error", err.Error()),
			)
			continue
		}
		items = append(items, item)
	}
	if skipped > 0 && f.collector != nil {
		f.collector.RecordEntriesSkipped(source.ID, skipped)
	}

	inserted, err := f.upserter.UpsertBatch(ctx, items)
	if err != nil {
		f.recordFailure(source.ID, "upsert_error")
		return nil, fmt.Errorf("記事のUPSERTに失敗: %w", err)
	}

	duration = time.Since(start)
	f.recordSuccess(source.ID, duration)
	if f.collector != nil {
		f.collector.RecordItemsUpserted(source.ID, len(items))
		f.collector.RecordItemsInserted(source.ID, len(inserted))
	}

	f.logger.Info("ソースフェッチが完了しました",
		slog.String("source", source.ID),
		slog.String("url", fetchURL),
		slog.Int("entries_total", len(entries)),
		slog.Int("entries_skipped", skipped),
		slog.Int("items_inserted", len(inserted)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return inserted, nil
}

// fetchDocument は条件付きGETでドキュメントを取得し、レスポンスと
// サイズ制限付きで読み込んだボディを返す。
func (f *Fetcher) fetchDocument(ctx context.Context, rawURL string, state *fetchState) (*http.Response, []byte, error) {
	client := f.ssrfGuard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "Newswire/1.0 Feed Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	if state.etag != "" {
		req.Header.Set("If-None-Match", state.etag)
	}
	if state.lastModified != "" {
		req.Header.Set("If-Modified-Since", state.lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	return resp, body, nil
}

// stateFor はソースの条件付きGET状態を取得する（なければ生成）。
func (f *Fetcher) stateFor(sourceID string) *fetchState {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[sourceID]
	if !ok {
		state = &fetchState{}
		f.states[sourceID] = state
	}
	return state
}

func (f *Fetcher) recordSuccess(sourceID string, duration time.Duration) {
	if f.collector == nil {
		return
	}
	f.collector.RecordFetchSuccess(sourceID)
	f.collector.RecordFetchLatency(sourceID, duration)
}

func (f *Fetcher) recordFailure(sourceID string, reason string) {
	if f.collector == nil {
		return
	}
	f.collector.RecordFetchFailure(sourceID, reason)
}

// convertGofeedItems はgofeedの記事をmodel.ParsedEntryに変換する。
func convertGofeedItems(items []*gofeed.Item) []model.ParsedEntry {
	entries := make([]model.ParsedEntry, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		entry := model.ParsedEntry{
			GUID:    item.GUID,
			Title:   item.Title,
			Link:    item.Link,
			Summary: item.Description,
		}

		// 著者情報
		if item.Author != nil {
			entry.Author = item.Author.Name
		}
		if entry.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			entry.Author = item.Authors[0].Name
		}

		// 公開日時
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			entry.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			entry.PublishedAt = &t
		}

		// SummaryがなくContentがある場合はContentを使用
		if entry.Summary == "" && item.Content != "" {
			entry.Summary = item.Content
		}

		// カテゴリは正規化ステップで形式判定するため生のまま保持
		if len(item.Categories) > 0 {
			entry.RawCategories = item.Categories
		} else if item.Custom != nil {
			if raw, ok := item.Custom["categories"]; ok {
				entry.RawCategories = raw
			}
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if entry.Link == "" && entry.GUID != "" &&
			(strings.HasPrefix(entry.GUID, "http://") || strings.HasPrefix(entry.GUID, "https://")) {
			entry.Link = entry.GUID
		}

		entries = append(entries, entry)
	}

	return entries
}
