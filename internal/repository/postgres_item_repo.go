package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/newswire/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したFeedItemリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// UpsertBatch は記事のバッチをUPSERTし、初回挿入だった行だけを返す。
// 1件ごとに単一のINSERT ... ON CONFLICT文で処理するため、
// 並行するスイープや別サイクルのUPSERTと競合しても
// 「新規挿入かどうか」の判定が失われない。
// (xmax = 0) は衝突せず挿入された行でのみ真になる。
func (r *PostgresItemRepo) UpsertBatch(ctx context.Context, items []model.FeedItem) ([]model.FeedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var inserted []model.FeedItem

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		categories := item.Categories
		if categories == nil {
			categories = []string{}
		}

		var (
			rowID    string
			isInsert bool
		)
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO feed_items (id, source, external_id, title, link, summary, author,
			                         categories, published_at, fetched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (source, external_id) DO UPDATE SET
			     title = EXCLUDED.title,
			     link = EXCLUDED.link,
			     summary = EXCLUDED.summary,
			     author = EXCLUDED.author,
			     categories = EXCLUDED.categories,
			     published_at = EXCLUDED.published_at,
			     fetched_at = EXCLUDED.fetched_at
			 RETURNING id, (xmax = 0)`,
			item.ID, item.Source, item.ExternalID, item.Title, item.Link,
			item.Summary, item.Author, pq.Array(categories),
			item.PublishedAt, item.FetchedAt,
		).Scan(&rowID, &isInsert)
		if err != nil {
			return inserted, fmt.Errorf("記事のUPSERTに失敗しました (%s/%s): %w",
				item.Source, item.ExternalID, err)
		}

		if isInsert {
			item.ID = rowID
			item.Categories = categories
			inserted = append(inserted, item)
		}
	}

	return inserted, nil
}

// ListRecent は published_at 降順（同値は fetched_at 降順）で記事を返す。
// sourceが空文字列の場合は全ソースを対象とする。
func (r *PostgresItemRepo) ListRecent(ctx context.Context, source string, limit int) ([]model.FeedItem, error) {
	query := `SELECT id, source, external_id, title, link, summary, author,
	                 categories, published_at, fetched_at
	          FROM feed_items`
	args := []any{}
	argIndex := 1

	if source != "" {
		query += fmt.Sprintf(" WHERE source = $%d", argIndex)
		args = append(args, source)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY published_at DESC, fetched_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.FeedItem
	for rows.Next() {
		var item model.FeedItem
		var categories pq.StringArray

		if err := rows.Scan(
			&item.ID, &item.Source, &item.ExternalID, &item.Title, &item.Link,
			&item.Summary, &item.Author, &categories,
			&item.PublishedAt, &item.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}

		item.Categories = []string(categories)
		if item.Categories == nil {
			item.Categories = []string{}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return items, nil
}

// DeleteOlderThan は fetched_at がhorizonより古い行を削除し、削除件数を返す。
func (r *PostgresItemRepo) DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM feed_items WHERE fetched_at < $1`, horizon)
	if err != nil {
		return 0, fmt.Errorf("保持期間超過記事の削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
