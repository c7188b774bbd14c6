package model

import "fmt"

// APIError はクライアントへ返すエラーを表す。
// Messageはそのままレスポンスの"error"フィールドとしてユーザーに表示される。
type APIError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, submission, profile, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeInvalidDestination = "INVALID_DESTINATION_URL"
	ErrCodeInvalidStreaming   = "INVALID_STREAMING_URL"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeOnboardingRequired = "ONBOARDING_REQUIRED"
	ErrCodeForbiddenOrigin    = "FORBIDDEN_ORIGIN"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeOTPFailed          = "OTP_FAILED"
	ErrCodeEmptyMessages      = "EMPTY_MESSAGES"
	ErrCodeAINotConfigured    = "AI_NOT_CONFIGURED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はJSONボディの解析に失敗した場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid request body.",
		Category: "validation",
	}
}

// NewValidationError は必須項目の欠落など入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewInvalidEmailError はメールアドレスの形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "Please enter a valid email address.",
		Category: "validation",
	}
}

// NewInvalidDestinationError は広告の遷移先URLが不正な場合のエラーを生成する。
func NewInvalidDestinationError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDestination,
		Message:  "Invalid destination URL",
		Category: "validation",
	}
}

// NewInvalidStreamingURLError は楽曲のストリーミングURLが不正な場合のエラーを生成する。
func NewInvalidStreamingURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStreaming,
		Message:  "Invalid streaming URL",
		Category: "validation",
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("The username %q is already taken.", username),
		Category: "profile",
	}
}

// NewProfileNotFoundError はプロフィール未作成の場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Profile not found.",
		Category: "profile",
	}
}

// NewUnauthorizedError は未認証アクセスのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
	}
}

// NewOnboardingRequiredError はオンボーディング未完了のエラーを生成する。
func NewOnboardingRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeOnboardingRequired,
		Message:  "Onboarding required",
		Category: "auth",
	}
}

// NewForbiddenOriginError はOriginヘッダー検証に失敗した場合のエラーを生成する。
func NewForbiddenOriginError() *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenOrigin,
		Message:  "Forbidden",
		Category: "auth",
	}
}

// NewRateLimitedError はOTPエンドポイントのレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please wait a minute and try again.",
		Category: "system",
	}
}

// NewOTPFailedError は認証プロバイダーへのOTP送信・検証の失敗を表すエラーを生成する。
func NewOTPFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeOTPFailed,
		Message:  message,
		Category: "auth",
	}
}

// NewEmptyMessagesError は送信できるメッセージが1件もない場合のエラーを生成する。
func NewEmptyMessagesError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessages,
		Message:  "No messages to send.",
		Category: "validation",
	}
}

// NewAINotConfiguredError はAIプロバイダーのAPIキーが未設定の場合のエラーを生成する。
func NewAINotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeAINotConfigured,
		Message:  "AI is not configured on this server.",
		Category: "system",
	}
}

// NewNotFoundError は存在しないAPIエンドポイントへのリクエストのエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Not found",
		Category: "system",
	}
}
