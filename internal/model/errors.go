package model

import "fmt"

// APIError はハンドラーがHTTPステータスに変換するドメインエラーを表す。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアントに返すメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeSSRFBlocked           = "SSRF_BLOCKED"
	ErrCodeValidation            = "VALIDATION_FAILED"
	ErrCodeItemNotFound          = "ITEM_NOT_FOUND"
	ErrCodeAutomationNotFound    = "AUTOMATION_NOT_FOUND"
	ErrCodeAutomationDisabled    = "AUTOMATION_DISABLED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid URL: %s", reason),
	}
}

// NewSSRFBlockedError は内部ネットワーク宛てのURLを拒否した場合のエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:    ErrCodeSSRFBlocked,
		Message: "This URL points to a private or local address and cannot be saved.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s %s", field, reason),
	}
}

// NewItemNotFoundError はアイテム未検出エラーを生成する。
// 他ユーザーのアイテムを指定した場合も同じエラーを返す。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:    ErrCodeItemNotFound,
		Message: fmt.Sprintf("Item not found: %s", itemID),
	}
}

// NewAutomationNotFoundError はメール自動化が存在しない場合のエラーを生成する。
func NewAutomationNotFoundError(automationID string) *APIError {
	return &APIError{
		Code:    ErrCodeAutomationNotFound,
		Message: fmt.Sprintf("Automation not found: %s", automationID),
	}
}

// NewAutomationDisabledError は無効化されたメール自動化を実行しようとした場合のエラーを生成する。
func NewAutomationDisabledError(key string) *APIError {
	return &APIError{
		Code:    ErrCodeAutomationDisabled,
		Message: fmt.Sprintf("Automation is disabled: %s", key),
	}
}
