package model

import "time"

// EmailAutomation は管理画面から手動実行できるメール自動化を表す。
// 実際の送信処理は外部の自動化基盤が担う。
type EmailAutomation struct {
	ID          string
	Key         string
	Name        string
	Description string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStatus はメール自動化の実行結果を表す。
type RunStatus string

const (
	// RunStatusSucceeded は外部基盤への起動依頼が成功したことを示す。
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed は外部基盤への起動依頼が失敗したことを示す。
	RunStatusFailed RunStatus = "failed"
)

// AutomationRun はメール自動化の実行履歴を表す。
type AutomationRun struct {
	ID           string
	AutomationID string
	TriggeredBy  string
	Status       RunStatus
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// AutomationWithLastRun は自動化と直近の実行履歴を結合した構造体。
// LastRunは一度も実行されていない場合nilになる。
type AutomationWithLastRun struct {
	EmailAutomation
	LastRun *AutomationRun
}
