package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue はレジストリから指定名のカウンタ値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
		}
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordFetchSuccess_IncrementsCounter はフェッチ成功カウンタが増加することを検証する。
func TestRecordFetchSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess("feed-1")
	c.RecordFetchSuccess("feed-1")

	if got := counterValue(t, reg, "newswire_fetch_success_total"); got != 2 {
		t.Errorf("fetch_success_total = %v, want 2", got)
	}
}

// TestRecordFetchFailure_LabelsByReason はフェッチ失敗が理由ラベル付きで記録されることを検証する。
func TestRecordFetchFailure_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchFailure("feed-1", "timeout")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() != "newswire_fetch_fail_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == "timeout" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected fetch_fail_total with reason=timeout label")
	}
}

// TestRecordItemsInserted_AddsCount は挿入数カウンタが加算されることを検証する。
func TestRecordItemsInserted_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemsInserted("feed-1", 3)
	c.RecordItemsInserted("feed-1", 2)

	if got := counterValue(t, reg, "newswire_items_inserted_total"); got != 5 {
		t.Errorf("items_inserted_total = %v, want 5", got)
	}
}

// TestSetLiveSessions_SetsGauge はセッション数ゲージが設定されることを検証する。
func TestSetLiveSessions_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetLiveSessions(7)
	if got := counterValue(t, reg, "newswire_live_sessions"); got != 7 {
		t.Errorf("live_sessions = %v, want 7", got)
	}

	c.SetLiveSessions(2)
	if got := counterValue(t, reg, "newswire_live_sessions"); got != 2 {
		t.Errorf("live_sessions = %v, want 2", got)
	}
}

// TestRecordBroadcast_AddsCount は配信イベントカウンタが加算されることを検証する。
func TestRecordBroadcast_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBroadcast(4)

	if got := counterValue(t, reg, "newswire_broadcast_events_total"); got != 4 {
		t.Errorf("broadcast_events_total = %v, want 4", got)
	}
}

// TestRecordFetchLatency_ObservesHistogram はレイテンシヒストグラムが記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency("feed-1", 150*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "newswire_fetch_latency_seconds" {
			found = true
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
				t.Error("expected 1 histogram sample")
			}
		}
	}
	if !found {
		t.Error("expected fetch_latency_seconds histogram")
	}
}

// TestHandler_ServesMetrics は/metricsハンドラーが登録済みメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFetchSuccess("feed-1")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "newswire_fetch_success_total") {
		t.Error("expected newswire_fetch_success_total in metrics output")
	}
}
