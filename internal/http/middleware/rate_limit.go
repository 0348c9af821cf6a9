package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

// RateLimitMiddleware ограничивает количество запросов.
// Авторизованные запросы считаются по пользователю, остальные по IP.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		state, err := instance.Get(c.Request.Context(), rateLimitKey(c))
		if err != nil {
			logger.Log.WithError(err).Error("rate limiter недоступен")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "слишком много запросов, попробуйте позже",
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if raw, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := raw.(uuid.UUID); ok && id != uuid.Nil {
			return "user:" + id.String()
		}
	}
	return "ip:" + c.ClientIP()
}
