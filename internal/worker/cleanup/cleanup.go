// Package cleanup はCSV一括登録履歴の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したexpense_importsの行を日次バッチで削除する。
// 支出本体（expenses）は削除対象に含めない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は一括登録履歴の既定の保持日数。
const DefaultRetentionDays = 90

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PurgeRecorder は削除件数を記録するメトリクスの送り先。
type PurgeRecorder interface {
	RecordImportLogsPurged(count int)
}

// CleanupJob は保持期間を超過した一括登録履歴の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	recorder      PurgeRecorder
	RetentionDays int // 履歴の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionDaysが0以下の場合はDefaultRetentionDaysを使用する。recorderはnilでもよい。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder PurgeRecorder, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		recorder:      recorder,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過した一括登録履歴を削除する。
// created_atがRetentionDays日前より古い行をDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM expense_imports WHERE created_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("一括登録履歴のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("failed to purge expense imports: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if j.recorder != nil && deletedCount > 0 {
		j.recorder.RecordImportLogsPurged(int(deletedCount))
	}

	j.logger.Info("一括登録履歴のクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回Runを実行し、以降interval間隔で繰り返す。
// ctxがキャンセルされるまでブロックする。個々の実行の失敗はログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
