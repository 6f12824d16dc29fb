package model

import "errors"

var (
	// ErrInvalidParameter リクエスト境界での不正なパラメータ
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidResolution サポート外の解像度（呼び出し側のバグ）
	ErrInvalidResolution = errors.New("invalid resolution")
	// ErrStoreUnavailable ストアへのクエリ実行失敗
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTooManyCells 表示範囲を覆うセル数が上限を超えた
	ErrTooManyCells = errors.New("too many covering cells")
	// ErrMaintenanceInProgress 親セルマップ再構築が実行中
	ErrMaintenanceInProgress = errors.New("maintenance already in progress")
)

// ValidationError 不正なフィールドを特定するバリデーションエラー
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Unwrap errors.Is(err, ErrInvalidParameter) で判定できるようにする
func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameter
}

// NewValidationError 新しいValidationErrorを作成
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
