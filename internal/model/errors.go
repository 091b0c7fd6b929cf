// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, source, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSourceNotFound = "SOURCE_NOT_FOUND"
	ErrCodeSourceBusy     = "SOURCE_BUSY"
	ErrCodeInvalidLimit   = "INVALID_LIMIT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
)

// NewSourceNotFoundError は未設定ソースへのアクセスエラーを生成する。
func NewSourceNotFoundError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("指定されたソースは設定されていません: %s", sourceID),
		Category: "source",
		Action:   "ソースIDを確認してください。",
	}
}

// NewSourceBusyError は取り込みサイクル実行中のソースに対する
// 手動リフレッシュ要求のエラーを生成する。
func NewSourceBusyError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceBusy,
		Message:  fmt.Sprintf("ソースの取り込みサイクルが実行中です: %s", sourceID),
		Category: "source",
		Action:   "サイクル完了後に再度お試しください。",
	}
}

// NewInvalidLimitError は無効なlimitパラメータのエラーを生成する。
func NewInvalidLimitError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効なlimitです: %s", raw),
		Category: "validation",
		Action:   "limitには1以上の整数を指定してください。",
	}
}

// NewUnauthorizedError は管理者トークン検証失敗のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "管理者トークンが無効です。",
		Category: "auth",
		Action:   "Authorizationヘッダーに正しいトークンを指定してください。",
	}
}
