// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeInvalidNickname   = "INVALID_NICKNAME"
	ErrCodeInvalidSignature  = "INVALID_SIGNUP_SIGNATURE"
	ErrCodeDuplicateAccount  = "DUPLICATE_ACCOUNT"
	ErrCodeAccountCreation   = "ACCOUNT_CREATION_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeAvatarUnavailable = "AVATAR_UNAVAILABLE"
)

// NewValidationError は必須フィールド欠落エラーを生成する。
func NewValidationError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("必須フィールドが入力されていません: %s", field),
		Category: "validation",
		Action:   "すべてのフィールドを入力して再送信してください。",
	}
}

// NewInvalidNicknameError はニックネームが使用できない場合のエラーを生成する。
func NewInvalidNicknameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidNickname,
		Message:  "ニックネームが無効です。1〜50文字で入力してください。",
		Category: "validation",
		Action:   "HTMLタグを含まない1〜50文字のニックネームを入力してください。",
	}
}

// NewInvalidSignatureError はサインアップパラメータの署名不一致エラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "サインアップ情報の検証に失敗しました。",
		Category: "auth",
		Action:   "ログインからやり直してください。",
	}
}

// NewDuplicateAccountError は同一Googleアカウントの二重登録エラーを生成する。
func NewDuplicateAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  "このGoogleアカウントは既に登録されています。",
		Category: "auth",
		Action:   "ログインからやり直してください。",
	}
}

// NewAccountCreationFailedError はアカウント作成失敗エラーを生成する。
func NewAccountCreationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountCreation,
		Message:  "アカウントの作成に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってからフォームを再送信してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewAvatarUnavailableError はアバター画像が取得できない場合のエラーを生成する。
func NewAvatarUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAvatarUnavailable,
		Message:  "プロフィール画像を取得できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
