// Package model はドメインモデルを定義する。
package model

import "time"

// FeedItem は取り込み済みの正規化された記事レコードを表す。
// (Source, ExternalID) の組が一意キーであり、同一の外部記事を
// 再取得しても新しい行は作られない。
type FeedItem struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary,omitempty"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ParsedEntry はフィードパーサーから取得した未保存の記事データを表す。
// フェッチャーがソース文書をパースした後、正規化を経てリポジトリに渡される。
// RawCategories はソースごとに異なるエンコーディング
// （文字列配列 / JSONエンコード済み文字列 / ラベル付きオブジェクト配列）を
// そのまま保持し、正規化ステップで []string に畳み込まれる。
type ParsedEntry struct {
	GUID          string
	Title         string
	Link          string
	Summary       string
	Author        string
	RawCategories any
	PublishedAt   *time.Time
}

// Source は取り込み対象の外部フィードを表す。
// IDは運用者が割り当てる安定した識別子で、配信チャンネル名としても使われる。
type Source struct {
	ID  string
	URL string
}
