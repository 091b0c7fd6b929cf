// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/newswire/internal/model"
)

// ItemRepository はFeedItemの永続化インターフェース。
// (source, external_id) を一意キーとするアトミックなUPSERTと、
// 新着順の取得を提供する。
type ItemRepository interface {
	// UpsertBatch は記事のバッチをUPSERTし、初回挿入だった行だけを返す。
	// 既存キーの行は可変フィールド（title, link, summary, author,
	// categories, published_at）を上書きし、fetched_atを更新する。
	// 戻り値の順序は入力バッチの順序に従う。
	UpsertBatch(ctx context.Context, items []model.FeedItem) ([]model.FeedItem, error)

	// ListRecent は published_at 降順（同値は fetched_at 降順）で記事を返す。
	// sourceが空文字列の場合は全ソースを対象とする。
	ListRecent(ctx context.Context, source string, limit int) ([]model.FeedItem, error)

	// DeleteOlderThan は fetched_at がhorizonより古い行を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}
