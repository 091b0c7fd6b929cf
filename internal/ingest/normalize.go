package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/newswire/internal/model"
)

// SummarySanitizer は概要テキストのサニタイズインターフェース。
type SummarySanitizer interface {
	Sanitize(raw string) string
}

// Normalizer はパース済みエントリを保存可能なFeedItemに正規化する。
// タイトル・識別子の必須チェック、公開日時のフォールバック、
// 概要のサニタイズ、カテゴリの形式統一を行う。
type Normalizer struct {
	sanitizer SummarySanitizer
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
func NewNormalizer(sanitizer SummarySanitizer) *Normalizer {
	return &Normalizer{sanitizer: sanitizer}
}

// Normalize はParsedEntryをFeedItemに変換する。
// 以下の場合はエラーを返し、呼び出し側はそのエントリをスキップする:
//   - タイトルが空（空白のみを含む）
//   - リンクが空（URL形式のGUIDはフェッチャー側でリンクに補完済み）
//
// 外部IDはGUIDを優先し、なければリンクを使用する。
// 公開日時が欠けているエントリはフェッチ時刻で代用する。
func (n *Normalizer) Normalize(source string, entry model.ParsedEntry, fetchedAt time.Time) (model.FeedItem, error) {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return model.FeedItem{}, fmt.Errorf("タイトルが空のエントリは取り込めません")
	}

	link := strings.TrimSpace(entry.Link)
	if link == "" {
		return model.FeedItem{}, fmt.Errorf("リンクが空のエントリは取り込めません")
	}

	externalID := strings.TrimSpace(entry.GUID)
	if externalID == "" {
		externalID = link
	}

	publishedAt := fetchedAt
	if entry.PublishedAt != nil {
		publishedAt = *entry.PublishedAt
	}

	return model.FeedItem{
		Source:      source,
		ExternalID:  externalID,
		Title:       title,
		Link:        link,
		Summary:     n.sanitizer.Sanitize(entry.Summary),
		Author:      strings.TrimSpace(entry.Author),
		Categories:  NormalizeCategories(entry.RawCategories),
		PublishedAt: publishedAt.UTC(),
		FetchedAt:   fetchedAt.UTC(),
	}, nil
}
