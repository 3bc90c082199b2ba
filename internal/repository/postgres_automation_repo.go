package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fibi-app/fibi/internal/model"
)

// PostgresAutomationRepo はPostgreSQLを使用したメール自動化リポジトリ。
type PostgresAutomationRepo struct {
	db *sql.DB
}

// NewPostgresAutomationRepo はPostgresAutomationRepoを生成する。
func NewPostgresAutomationRepo(db *sql.DB) *PostgresAutomationRepo {
	return &PostgresAutomationRepo{db: db}
}

// FindByID は指定IDのメール自動化を取得する。見つからない場合はnilを返す。
func (r *PostgresAutomationRepo) FindByID(ctx context.Context, id string) (*model.EmailAutomation, error) {
	a := &model.EmailAutomation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, key, name, description, enabled, created_at, updated_at
		 FROM email_automations WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Key, &a.Name, &a.Description, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email automation: %w", err)
	}
	return a, nil
}

// ListWithLastRun はメール自動化の一覧を直近の実行履歴付きで返す。
// LATERAL JOINで自動化ごとに最新1件の実行履歴のみを結合する。
func (r *PostgresAutomationRepo) ListWithLastRun(ctx context.Context) ([]model.AutomationWithLastRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.key, a.name, a.description, a.enabled, a.created_at, a.updated_at,
		        lr.id, lr.triggered_by, lr.status, lr.error_message, lr.started_at, lr.finished_at
		 FROM email_automations a
		 LEFT JOIN LATERAL (
		     SELECT id, triggered_by, status, error_message, started_at, finished_at
		     FROM email_automation_runs
		     WHERE automation_id = a.id
		     ORDER BY started_at DESC
		     LIMIT 1
		 ) lr ON true
		 ORDER BY a.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list email automations: %w", err)
	}
	defer rows.Close()

	results := make([]model.AutomationWithLastRun, 0)
	for rows.Next() {
		var a model.AutomationWithLastRun
		var runID, triggeredBy, status, errMsg sql.NullString
		var startedAt, finishedAt sql.NullTime

		if err := rows.Scan(
			&a.ID, &a.Key, &a.Name, &a.Description, &a.Enabled, &a.CreatedAt, &a.UpdatedAt,
			&runID, &triggeredBy, &status, &errMsg, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan email automation: %w", err)
		}

		if runID.Valid {
			a.LastRun = &model.AutomationRun{
				ID:           runID.String,
				AutomationID: a.ID,
				TriggeredBy:  nullStringValue(triggeredBy),
				Status:       model.RunStatus(nullStringValue(status)),
				ErrorMessage: nullStringValue(errMsg),
				StartedAt:    startedAt.Time,
				FinishedAt:   finishedAt.Time,
			}
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email automations: %w", err)
	}

	return results, nil
}

// CreateRun は実行履歴を記録する。
func (r *PostgresAutomationRepo) CreateRun(ctx context.Context, run *model.AutomationRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_automation_runs
		     (id, automation_id, triggered_by, status, error_message, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.AutomationID, run.TriggeredBy, string(run.Status), run.ErrorMessage,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record automation run: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AutomationRepository = (*PostgresAutomationRepo)(nil)
