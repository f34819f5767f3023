// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, dashboard, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenRequired      = "TOKEN_REQUIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeDashboardNotFound  = "DASHBOARD_NOT_FOUND"
	ErrCodeInvalidTheme       = "INVALID_THEME"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Request body could not be parsed",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  reason,
		Category: "validation",
		Action:   "Fix the highlighted field and retry.",
	}
}

// NewUserExistsError は登録済みユーザーとの重複エラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "User with this email or username already exists",
		Category: "validation",
		Action:   "Log in or choose a different email/username.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレス不一致とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewTokenRequiredError はトークン未指定エラーを生成する。
func NewTokenRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenRequired,
		Message:  "Access token required",
		Category: "auth",
		Action:   "Log in and send the token as a Bearer credential.",
	}
}

// NewInvalidTokenError は不正・期限切れトークンエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired token",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewDashboardNotFoundError はダッシュボード未作成エラーを生成する。
func NewDashboardNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDashboardNotFound,
		Message:  "Dashboard not found",
		Category: "dashboard",
		Action:   "Save a dashboard first.",
	}
}

// NewInvalidThemeError は未定義テーマの指定エラーを生成する。
func NewInvalidThemeError(theme string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTheme,
		Message:  fmt.Sprintf("Invalid theme: %q", theme),
		Category: "validation",
		Action:   "Use light or dark.",
	}
}

// NewRouteNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "Route not found",
		Category: "system",
		Action:   "Check the request path.",
	}
}

// NewPayloadTooLargeError はリクエストボディのサイズ超過エラーを生成する。
func NewPayloadTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  "Request body too large",
		Category: "validation",
		Action:   "Reduce the size of the request body.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Retry after a while.",
	}
}
