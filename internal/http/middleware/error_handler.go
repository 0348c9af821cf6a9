package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

// ErrorHandler логирует ошибки запроса и отвечает за те, что не были отправлены хэндлером.
// Клиенту уходит только публичное сообщение AppError.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.Internal(err, "внутренняя ошибка сервера")
		}

		entry := logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   appErr.Code,
			"status": appErr.HTTPStatus,
		}).WithError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Warn("request rejected")
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.PublicMessage(), "code": appErr.Code})
	}
}
