// Package retention は保持期間を超過した記事の自動削除ジョブを提供する。
// fetched_atが保持期間より古い記事を日次バッチで削除する。
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newswire/internal/metrics"
)

// ItemDeleter は期限切れ記事の削除インターフェース。
type ItemDeleter interface {
	DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}

// Job は保持期間を超過した記事の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	repo          ItemDeleter
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	retentionDays int
}

// NewJob は新しいJobを生成する。
// retentionDaysが0以下の場合はデフォルト値30日を使用する。
func NewJob(repo ItemDeleter, collector metrics.MetricsCollector, logger *slog.Logger, retentionDays int) *Job {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Job{
		repo:          repo,
		collector:     collector,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Start は削除ジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("保持期間クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.retentionDays),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("保持期間クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("保持期間クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("保持期間クリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は保持期間を超過した記事を1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	horizon := time.Now().AddDate(0, 0, -j.retentionDays)

	deleted, err := j.repo.DeleteOlderThan(ctx, horizon)
	if err != nil {
		return fmt.Errorf("期限切れ記事の削除に失敗: %w", err)
	}

	if j.collector != nil && deleted > 0 {
		j.collector.RecordItemsDeleted(deleted)
	}

	j.logger.Info("保持期間クリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.retentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
