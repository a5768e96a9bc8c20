package apperr

import (
	"errors"
	"fmt"
)

// Kind は業務ルール違反の分類です。
type Kind string

const (
	KindInvalid             Kind = "INVALID"
	KindNotFound            Kind = "NOT_FOUND"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindInvalidSaleTotal    Kind = "INVALID_SALE_TOTAL"
	KindInvalidShareSum     Kind = "INVALID_SHARE_SUM"
	KindAlreadyPaid         Kind = "ALREADY_PAID"
	KindConstraintViolation Kind = "CONSTRAINT_VIOLATION"
	KindStorageUnavailable  Kind = "STORAGE_UNAVAILABLE"
)

// errors.Is 用の番兵エラー。*Error は自分の Kind の番兵と一致します。
var (
	ErrInvalid             = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidSaleTotal    = errors.New("sale total does not match items")
	ErrInvalidShareSum     = errors.New("ownership shares must sum to 100")
	ErrAlreadyPaid         = errors.New("sale already paid")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

var sentinels = map[Kind]error{
	KindInvalid:             ErrInvalid,
	KindNotFound:            ErrNotFound,
	KindInsufficientStock:   ErrInsufficientStock,
	KindInvalidSaleTotal:    ErrInvalidSaleTotal,
	KindInvalidShareSum:     ErrInvalidShareSum,
	KindAlreadyPaid:         ErrAlreadyPaid,
	KindConstraintViolation: ErrConstraintViolation,
	KindStorageUnavailable:  ErrStorageUnavailable,
}

// Error は拒否された操作が同期的に返すエラーです。
// Details には呼び出し側が入力を修正できるだけの情報 (在庫不足の品目など) を入れます。
type Error struct {
	Kind    Kind           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// WithDetail は詳細を1件追加します。
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error {
	return New(KindInvalid, format, args...)
}

func NotFound(entity string, id int64) *Error {
	return New(KindNotFound, "%s %d not found", entity, id).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConstraintViolation, format, args...)
}

func StorageUnavailable(err error) *Error {
	return New(KindStorageUnavailable, "storage is temporarily unavailable").Wrap(err)
}

// KindOf はエラーチェーン中の最初の *Error の Kind を返します。
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsBusiness は業務ルールによる拒否かどうかを返します。リトライ対象外です。
func IsBusiness(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind != KindStorageUnavailable
}
