package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker проверяет доступность зависимости (база, Redis)
type Checker func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// HealthCheck обработчик для проверки работоспособности сервиса.
// Если хотя бы одна проверка не прошла, отвечает 503.
func HealthCheck(checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "OK"
		}

		overall := "OK"
		if status != http.StatusOK {
			overall = "DEGRADED"
		}
		c.JSON(status, gin.H{
			"status": overall,
			"time":   time.Now().Format(time.RFC3339),
			"checks": results,
		})
	}
}
