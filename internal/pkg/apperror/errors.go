package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeUpstream     ErrorCode = "UPSTREAM_FAILURE"
	ErrCodeIntegrity    ErrorCode = "INTEGRITY_FAILURE"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// PublicMessage возвращает текст, который можно показать клиенту.
// Для ошибок внешних систем и внутренних ошибок детали скрываются.
func (e *AppError) PublicMessage() string {
	switch e.Code {
	case ErrCodeUpstream:
		return "платёжный сервис временно недоступен"
	case ErrCodeIntegrity:
		return "не удалось проверить подпись запроса"
	case ErrCodeInternal:
		return "внутренняя ошибка сервера"
	default:
		return e.Message
	}
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func NotFound(message string) *AppError     { return New(ErrCodeNotFound, message) }
func Forbidden(message string) *AppError    { return New(ErrCodeForbidden, message) }
func Conflict(message string) *AppError     { return New(ErrCodeConflict, message) }
func InvalidState(message string) *AppError { return New(ErrCodeInvalidState, message) }
func Validation(message string) *AppError   { return New(ErrCodeValidation, message) }

func Upstream(err error, message string) *AppError {
	return Wrap(err, ErrCodeUpstream, message)
}

func Integrity(err error, message string) *AppError {
	return Wrap(err, ErrCodeIntegrity, message)
}

func Internal(err error, message string) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeIntegrity:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInvalidState:
		return http.StatusUnprocessableEntity
	case ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для "чужих" ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool     { return CodeOf(err) == ErrCodeNotFound }
func IsForbidden(err error) bool    { return CodeOf(err) == ErrCodeForbidden }
func IsValidation(err error) bool   { return CodeOf(err) == ErrCodeValidation }
func IsConflict(err error) bool     { return CodeOf(err) == ErrCodeConflict }
func IsInvalidState(err error) bool { return CodeOf(err) == ErrCodeInvalidState }
func IsUpstream(err error) bool     { return CodeOf(err) == ErrCodeUpstream }
func IsIntegrity(err error) bool    { return CodeOf(err) == ErrCodeIntegrity }

var (
	ErrUserNotFound     = New(ErrCodeNotFound, "пользователь не найден")
	ErrProjectNotFound  = New(ErrCodeNotFound, "проект не найден")
	ErrProposalNotFound = New(ErrCodeNotFound, "предложение не найдено")
	ErrDealNotFound     = New(ErrCodeNotFound, "сделка не найдена")
	ErrDisputeNotFound  = New(ErrCodeNotFound, "спор не найден")
	ErrPayoutNotFound   = New(ErrCodeNotFound, "заявка на вывод не найдена")
	ErrWalletNotFound   = New(ErrCodeNotFound, "кошелёк не найден")
	ErrUnauthorized     = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden        = New(ErrCodeForbidden, "недостаточно прав")
)
