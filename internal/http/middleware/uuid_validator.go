package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDValidator проверяет, что перечисленные параметры пути являются валидными UUID.
// Использование: deals.GET("/:id", UUIDValidator("id"), handler.GetDeal)
func UUIDValidator(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range params {
			raw := c.Param(name)
			if raw == "" {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "параметр " + name + " обязателен"})
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "параметр " + name + " должен быть валидным UUID"})
				return
			}
		}
		c.Next()
	}
}
