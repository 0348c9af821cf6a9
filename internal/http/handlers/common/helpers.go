package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/middleware"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var (
	ErrNoUser      = errors.New("пользователь не найден в контексте")
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID возвращает пользователя, положенного AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	if raw, ok := c.Get(middleware.ContextUserIDKey); ok {
		if id, ok := raw.(uuid.UUID); ok && id != uuid.Nil {
			return id, nil
		}
	}
	return uuid.Nil, ErrNoUser
}

func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}
	return id, nil
}

// BindAndValidate разбирает JSON тело и проверяет binding-теги.
func BindAndValidate(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("ошибка валидации запроса: %w", err)
	}
	return nil
}

// RespondAppError переводит ошибку сервиса в HTTP ответ. Ошибка кладётся в контекст,
// её логирует ErrorHandler; клиент видит только публичное сообщение.
func RespondAppError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err, "внутренняя ошибка сервера")
	}
	c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
		Error: appErr.PublicMessage(),
		Code:  string(appErr.Code),
	})
}

func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: message, Code: string(apperror.ErrCodeUnauthorized)})
}

func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: message, Code: string(apperror.ErrCodeValidation)})
}

// ParseIntQuery читает целый query-параметр, при ошибке возвращает fallback.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

// GetPagination limit в [1, 100] (20 по умолчанию), offset не меньше нуля.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", defaultLimit)
	switch {
	case limit < 1:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	offset = max(ParseIntQuery(c, "offset", 0), 0)
	return limit, offset
}
