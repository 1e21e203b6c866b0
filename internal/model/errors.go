// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// サーバーがメッセージを返した場合はそれを優先し、
// 汎用メッセージはサーバーメッセージがない場合のみ使用する。
type APIError struct {
	Code       string // エラーコード
	Message    string // エラーメッセージ
	Category   string // カテゴリ: network, auth, validation, not_found, storage, server
	Action     string // ユーザー向け対処方法
	StatusCode int    // HTTPステータスコード。HTTPレスポンスがない失敗では0
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryNetwork    = "network"
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryStorage    = "storage"
	CategoryServer     = "server"
)

// 定義済みエラーコード
const (
	ErrCodeNetworkUnreachable = "NETWORK_UNREACHABLE"
	ErrCodeRequestTimeout     = "REQUEST_TIMEOUT"
	ErrCodeAuthRejected       = "AUTH_REJECTED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeServerError        = "SERVER_ERROR"
)

// NewNetworkError はサーバーに到達できなかった場合のエラーを生成する。
func NewNetworkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkUnreachable,
		Message:  fmt.Sprintf("サーバーに接続できませんでした: %s", reason),
		Category: CategoryNetwork,
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewTimeoutError はリクエストタイムアウトのエラーを生成する。
// タイムアウトにはHTTPステータスコードが存在しない。
func NewTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestTimeout,
		Message:  "リクエストがタイムアウトしました。",
		Category: CategoryNetwork,
		Action:   "通信状況の良い場所で再度お試しください。",
	}
}

// NewAuthError は認証拒否（401）のエラーを生成する。
// 無効または期限切れの認証情報を意味する。
func NewAuthError(serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "認証に失敗しました。認証情報が無効か期限切れです。"
	}
	return &APIError{
		Code:       ErrCodeAuthRejected,
		Message:    msg,
		Category:   CategoryAuth,
		Action:     "再度ログインしてください。",
		StatusCode: http.StatusUnauthorized,
	}
}

// NewValidationError はサーバーが入力を拒否した場合（4xx）のエラーを生成する。
// 重複登録や不正な入力など、サーバーメッセージをそのまま表示する。
func NewValidationError(statusCode int, serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "入力内容がサーバーに受け付けられませんでした。"
	}
	return &APIError{
		Code:       ErrCodeValidationFailed,
		Message:    msg,
		Category:   CategoryValidation,
		Action:     "入力内容を確認して再度お試しください。",
		StatusCode: statusCode,
	}
}

// NewNotFoundError は対象リソースが存在しない場合（404）のエラーを生成する。
func NewNotFoundError(serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "指定されたリソースが見つかりません。"
	}
	return &APIError{
		Code:       ErrCodeNotFound,
		Message:    msg,
		Category:   CategoryNotFound,
		Action:     "対象が削除されていないか確認してください。",
		StatusCode: http.StatusNotFound,
	}
}

// NewStorageError はローカル永続化ストレージが利用できない場合のエラーを生成する。
// 認証情報の「不在」とは区別され、不在として扱ってはならない。
func NewStorageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  fmt.Sprintf("ローカルストレージにアクセスできません: %s", reason),
		Category: CategoryStorage,
		Action:   "アプリを再起動するか、端末の空き容量を確認してください。",
	}
}

// NewServerError はサーバー内部エラー（5xx）のエラーを生成する。
func NewServerError(statusCode int, serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "サーバーでエラーが発生しました。"
	}
	return &APIError{
		Code:       ErrCodeServerError,
		Message:    msg,
		Category:   CategoryServer,
		Action:     "しばらく待ってから再度お試しください。",
		StatusCode: statusCode,
	}
}

// NewRequestFailure は非2xxのHTTPステータスコードを正規化エラーに分類する。
// serverMessageが空でない場合はそれを優先して表示する。
func NewRequestFailure(statusCode int, serverMessage string) *APIError {
	switch {
	case statusCode == http.StatusUnauthorized:
		return NewAuthError(serverMessage)
	case statusCode == http.StatusNotFound:
		return NewNotFoundError(serverMessage)
	case statusCode >= 400 && statusCode < 500:
		return NewValidationError(statusCode, serverMessage)
	default:
		return NewServerError(statusCode, serverMessage)
	}
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthError はエラーが認証拒否（401）かどうかを判定する。
func IsAuthError(err error) bool {
	return hasCategory(err, CategoryAuth)
}

// IsNetworkError はエラーがネットワーク起因（到達不能・タイムアウト）かどうかを判定する。
func IsNetworkError(err error) bool {
	return hasCategory(err, CategoryNetwork)
}

// IsNotFoundError はエラーが404かどうかを判定する。
func IsNotFoundError(err error) bool {
	return hasCategory(err, CategoryNotFound)
}

// IsStorageError はエラーがローカルストレージ障害かどうかを判定する。
func IsStorageError(err error) bool {
	return hasCategory(err, CategoryStorage)
}

func hasCategory(err error, category string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Category == category
}
