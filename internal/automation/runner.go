// Package automation は管理画面からのメール自動化の手動実行を提供する。
// 送信処理そのものは外部の自動化基盤が担い、ここでは起動依頼と実行履歴の記録のみを行う。
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/repository"
)

// ErrDispatchFailed は外部基盤への起動依頼が失敗したことを示す。
// 失敗した実行も履歴には記録される。
var ErrDispatchFailed = errors.New("automation dispatch failed")

// RunRecorder は実行結果を記録する。
type RunRecorder interface {
	RecordAutomationRun(automationKey, status string)
}

// Runner はメール自動化を実行する。
type Runner struct {
	repo       repository.AutomationRepository
	dispatcher Dispatcher
	recorder   RunRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner はRunnerを生成する。recorderはnilでもよい。
func NewRunner(repo repository.AutomationRepository, dispatcher Dispatcher, recorder RunRecorder) *Runner {
	return &Runner{
		repo:       repo,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// List は管理画面用にメール自動化の一覧を直近の実行履歴付きで返す。
func (r *Runner) List(ctx context.Context) ([]model.AutomationWithLastRun, error) {
	return r.repo.ListWithLastRun(ctx)
}

// Run は指定の自動化を実行する。
//
// triggeredByは実行したユーザーのID。
// 存在しない場合はAUTOMATION_NOT_FOUND、無効化されている場合はAUTOMATION_DISABLEDを返す。
// 起動依頼が失敗した場合は失敗として履歴に記録し、ErrDispatchFailedをラップして返す。
func (r *Runner) Run(ctx context.Context, automationID, triggeredBy string) (*model.AutomationRun, error) {
	if _, err := uuid.Parse(automationID); err != nil {
		return nil, model.NewAutomationNotFoundError(automationID)
	}
	// triggered_byはprofiles.idを指すUUID列
	if _, err := uuid.Parse(triggeredBy); err != nil {
		return nil, model.NewValidationError("triggered_by", "must be a user id")
	}

	a, err := r.repo.FindByID(ctx, automationID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, model.NewAutomationNotFoundError(automationID)
	}
	if !a.Enabled {
		return nil, model.NewAutomationDisabledError(a.Key)
	}

	run := &model.AutomationRun{
		ID:           uuid.NewString(),
		AutomationID: a.ID,
		TriggeredBy:  triggeredBy,
		StartedAt:    r.now().UTC(),
	}

	dispatchErr := r.dispatcher.Dispatch(ctx, DispatchRequest{
		RunID:         run.ID,
		AutomationID:  a.ID,
		AutomationKey: a.Key,
		TriggeredBy:   triggeredBy,
		RequestedAt:   run.StartedAt,
	})

	run.FinishedAt = r.now().UTC()
	run.Status = model.RunStatusSucceeded
	if dispatchErr != nil {
		run.Status = model.RunStatusFailed
		run.ErrorMessage = dispatchErr.Error()
	}

	if r.recorder != nil {
		r.recorder.RecordAutomationRun(a.Key, string(run.Status))
	}

	// 依頼がタイムアウトやキャンセルで失敗しても履歴は残す
	if err := r.repo.CreateRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.ErrorContext(ctx, "failed to record automation run",
			slog.String("automation_key", a.Key),
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
		if dispatchErr == nil {
			return nil, fmt.Errorf("failed to record automation run: %w", err)
		}
	}

	if dispatchErr != nil {
		r.logger.ErrorContext(ctx, "automation run failed",
			slog.String("automation_key", a.Key),
			slog.String("run_id", run.ID),
			slog.String("triggered_by", triggeredBy),
			slog.String("error", dispatchErr.Error()),
		)
		return run, fmt.Errorf("%w: %v", ErrDispatchFailed, dispatchErr)
	}

	r.logger.InfoContext(ctx, "automation run dispatched",
		slog.String("automation_key", a.Key),
		slog.String("run_id", run.ID),
		slog.String("triggered_by", triggeredBy),
	)
	return run, nil
}
