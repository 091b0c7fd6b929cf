// Package client はポーリングとリアルタイム配信を統合する
// クライアント側の突合レイヤーを提供する。サーバーの /api/items と
// /ws の2系統から届く記事を重複なく1つの表示リストに統合する。
package client

import (
	"sync"

	"github.com/hitoshi/newswire/internal/model"
)

// defaultMaxItems は表示リストの既定の上限件数。
const defaultMaxItems = 50

// DisplayItem は表示リスト上の記事を表す。
// Newは前回のポーリング以降に到着した記事（リアルタイム配信または
// ポーリング差分で初めて現れた記事）を示す。
type DisplayItem struct {
	model.FeedItem
	New bool `json:"new"`
}

// Reconciler はポーリング結果とリアルタイム配信を1つの表示リストに
// 突合する。記事は (source, external_id) をキーに重複排除され、
// リストは上限件数を超えない。全操作は並行安全。
type Reconciler struct {
	maxItems int

	mu     sync.Mutex
	items  []DisplayItem
	primed bool
}

// NewReconciler はReconcilerの新しいインスタンスを生成する。
// maxItemsが0以下の場合はデフォルト値50を使用する。
func NewReconciler(maxItems int) *Reconciler {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &Reconciler{maxItems: maxItems}
}

// itemKey は重複排除のキーを返す。
func itemKey(item model.FeedItem) string {
	return item.Source + "\x00" + item.ExternalID
}

// ApplyLive はリアルタイム配信で届いた記事を表示リストへ反映する。
// 未知の記事はNewフラグ付きで先頭に挿入し、既知の記事は位置を
// 保ったままフィールドを更新する。リストが上限を超えた場合は
// 末尾から切り詰める。
func (r *Reconciler) ApplyLive(items ...model.FeedItem) {
	if len(items) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.buildIndex()
	for _, item := range items {
		key := itemKey(item)
		if pos, seen := index[key]; seen {
			wasNew := r.items[pos].New
			r.items[pos] = DisplayItem{FeedItem: item, New: wasNew}
			continue
		}
		r.items = append([]DisplayItem{{FeedItem: item, New: true}}, r.items...)
		index = r.buildIndex()
	}

	r.truncate()
}

// ApplyPoll はポーリング結果（新着順）を表示リストへ突合する。
// 既知の記事は位置とNewフラグを保ったまま更新し、リストに存在しない
// 記事は先頭に挿入する。初回のポーリングで届いた記事はNewにしない
// （画面の初期ロードがすべて新着扱いになるのを防ぐ）。
func (r *Reconciler) ApplyPoll(polled []model.FeedItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := !r.primed
	r.primed = true

	index := r.buildIndex()
	var fresh []DisplayItem

	for _, item := range polled {
		key := itemKey(item)
		if pos, seen := index[key]; seen {
			wasNew := r.items[pos].New
			r.items[pos] = DisplayItem{FeedItem: item, New: wasNew}
			continue
		}
		fresh = append(fresh, DisplayItem{FeedItem: item, New: !first})
	}

	if len(fresh) > 0 {
		r.items = append(fresh, r.items...)
	}

	r.truncate()
}

// Items は表示リストのスナップショットを返す。
func (r *Reconciler) Items() []DisplayItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]DisplayItem, len(r.items))
	copy(snapshot, r.items)
	return snapshot
}

// ClearNew は全記事のNewフラグを落とす。
// 表示側が「新着」ハイライトを確認した後に呼ぶ。
func (r *Reconciler) ClearNew() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		r.items[i].New = false
	}
}

// Len は表示リストの件数を返す。
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// buildIndex はキーから位置への索引を構築する。r.muを保持して呼ぶこと。
func (r *Reconciler) buildIndex() map[string]int {
	index := make(map[string]int, len(r.items))
	for i, item := range r.items {
		index[itemKey(item.FeedItem)] = i
	}
	return index
}

// truncate はリストを上限件数に切り詰める。r.muを保持して呼ぶこと。
func (r *Reconciler) truncate() {
	if len(r.items) > r.maxItems {
		r.items = r.items[:r.maxItems]
	}
}
