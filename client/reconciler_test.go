package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/newswire/internal/model"
)

func makeItem(source, externalID, title string) model.FeedItem {
	return model.FeedItem{
		Source:      source,
		ExternalID:  externalID,
		Title:       title,
		PublishedAt: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}
}

func TestReconciler_FirstPollIsNotMarkedNew(t *testing.T) {
	r := NewReconciler(50)

	r.ApplyPoll([]model.FeedItem{
		makeItem("nikkei", "a", "記事A"),
		makeItem("nikkei", "b", "記事B"),
	})

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("件数 = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.New {
			t.Errorf("初回ポーリングの記事 %q がNewになっている", item.ExternalID)
		}
	}
}

func TestReconciler_SecondPollMarksFreshItemsNew(t *testing.T) {
	r := NewReconciler(50)
	r.ApplyPoll([]model.FeedItem{makeItem("nikkei", "a", "記事A")})

	r.ApplyPoll([]model.FeedItem{
		makeItem("nikkei", "b", "記事B"),
		makeItem("nikkei", "a", "記事A"),
	})

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("件数 = %d, want 2", len(items))
	}
	if items[0].ExternalID != "b" || !items[0].New {
		t.Errorf("差分の記事は先頭にNewフラグ付きで挿入されるべき: %+v", items[0])
	}
	if items[1].ExternalID != "a" || items[1].New {
		t.Errorf("既知の記事はNewにならない: %+v", items[1])
	}
}

func TestReconciler_ApplyLivePrependsWithNewFlag(t *testing.T) {
	r := NewReconciler(50)
	r.ApplyPoll([]model.FeedItem{makeItem("nikkei", "a", "記事A")})

	r.ApplyLive(makeItem("nikkei", "b", "速報B"))

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("件数 = %d, want 2", len(items))
	}
	if items[0].ExternalID != "b" || !items[0].New {
		t.Errorf("リアルタイム新着は先頭にNewフラグ付きで挿入されるべき: %+v", items[0])
	}
}

func TestReconciler_DuplicateLiveAndPollNotDoubled(t *testing.T) {
	r := NewReconciler(50)
	r.ApplyPoll([]model.FeedItem{makeItem("nikkei", "a", "記事A")})

	// 同じ記事がリアルタイム配信とポーリングの両方から届く
	r.ApplyLive(makeItem("nikkei", "b", "速報B"))
	r.ApplyPoll([]model.FeedItem{
		makeItem("nikkei", "b", "速報B"),
		makeItem("nikkei", "a", "記事A"),
	})

	if r.Len() != 2 {
		t.Errorf("件数 = %d, want 2（重複は統合される）", r.Len())
	}
}

func TestReconciler_SameExternalIDDifferentSourcesAreDistinct(t *testing.T) {
	r := NewReconciler(50)

	r.ApplyPoll([]model.FeedItem{
		makeItem("nikkei", "a", "記事A"),
		makeItem("reuters", "a", "記事A'"),
	})

	if r.Len() != 2 {
		t.Errorf("件数 = %d, want 2（キーは source と external_id の組）", r.Len())
	}
}

func TestReconciler_LiveUpdateKeepsPosition(t *testing.T) {
	r := NewReconciler(50)
	r.ApplyPoll([]model.FeedItem{
		makeItem("nikkei", "a", "記事A"),
		makeItem("nikkei", "b", "記事B"),
	})

	// 既知の記事の更新は位置を保つ
	r.ApplyLive(makeItem("nikkei", "b", "記事B（更新）"))

	items := r.Items()
	if items[1].ExternalID != "b" || items[1].Title != "記事B（更新）" {
		t.Errorf("items[1] = %+v, want 位置を保った更新", items[1])
	}
	if items[1].New {
		t.Error("既知の記事の更新でNewフラグが立ってはならない")
	}
}

func TestReconciler_BoundedGrowth(t *testing.T) {
	r := NewReconciler(50)

	// 100件のポーリング結果は上限50件に切り詰められる
	var polled []model.FeedItem
	for i := 0; i < 100; i++ {
		polled = append(polled, makeItem("nikkei", fmt.Sprintf("id-%03d", i), "記事"))
	}
	r.ApplyPoll(polled)

	if r.Len() != 50 {
		t.Errorf("件数 = %d, want 50（上限で切り詰め）", r.Len())
	}
}

func TestReconciler_LiveOverflowDropsTail(t *testing.T) {
	r := NewReconciler(3)
	r.ApplyPoll([]model.FeedItem{
		makeItem("nikkei", "a", "A"),
		makeItem("nikkei", "b", "B"),
		makeItem("nikkei", "c", "C"),
	})

	r.ApplyLive(makeItem("nikkei", "d", "D"))

	items := r.Items()
	if len(items) != 3 {
		t.Fatalf("件数 = %d, want 3", len(items))
	}
	if items[0].ExternalID != "d" {
		t.Errorf("先頭 = %q, want d", items[0].ExternalID)
	}
	// 末尾の c が落ちる
	for _, item := range items {
		if item.ExternalID == "c" {
			t.Error("上限超過時は末尾の記事が落ちるべき")
		}
	}
}

func TestReconciler_ClearNew(t *testing.T) {
	r := NewReconciler(50)
	r.ApplyPoll([]model.FeedItem{makeItem("nikkei", "a", "A")})
	r.ApplyLive(makeItem("nikkei", "b", "B"))

	r.ClearNew()

	for _, item := range r.Items() {
		if item.New {
			t.Errorf("ClearNew後にNewフラグが残っている: %+v", item)
		}
	}
}

func TestReconciler_DefaultMaxItems(t *testing.T) {
	r := NewReconciler(0)
	if r.maxItems != defaultMaxItems {
		t.Errorf("maxItems = %d, want %d (default)", r.maxItems, defaultMaxItems)
	}
}

func TestReconciler_ItemsReturnsSnapshot(t *testing.T) {
	r := NewReconciler(50)
	r.ApplyPoll([]model.FeedItem{makeItem("nikkei", "a", "A")})

	snapshot := r.Items()
	snapshot[0].Title = "改変"

	if r.Items()[0].Title != "A" {
		t.Error("Itemsの戻り値の変更が内部状態に影響してはならない")
	}
}
