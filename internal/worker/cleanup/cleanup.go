// Package cleanup はメール自動化の実行履歴を保持期間で削除するジョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は実行履歴のデフォルト保持日数。
const DefaultRetentionDays = 90

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CleanupJob は保持期間を超過した実行履歴の削除ジョブ。
// 何度実行しても結果が変わらない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
	now           func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。retentionDaysが0以下の場合はデフォルト値を使う。
func NewCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
		now:           time.Now,
	}
}

// Cutoff はこの時刻より前に開始した実行履歴を削除対象とする境界を返す。
func (j *CleanupJob) Cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.RetentionDays)
}

// Run は保持期間を超過した実行履歴を削除する。削除対象がなくてもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.Cutoff()

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM email_automation_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "automation run cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("failed to delete automation runs: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.ErrorContext(ctx, "failed to read deleted row count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read deleted row count: %w", err)
	}

	j.logger.InfoContext(ctx, "automation run cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxがキャンセルされると戻る。
// 個々の実行の失敗はログに記録して次の周期で再試行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = j.Run(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("automation run cleanup stopped")
			return
		case <-ticker.C:
		}
	}
}
