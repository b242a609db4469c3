package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// APIKeyHeader заголовок ключа внешнего API
const APIKeyHeader = "X-API-Key"

// RequireAPIKey принимает демо-ключ или любой ключ с префиксом livePrefix
func RequireAPIKey(demoKey, livePrefix string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			key = strings.TrimPrefix(c.GetHeader("Authorization"), authHeaderPrefix)
		}

		if !validAPIKey(key, demoKey, livePrefix) {
			log.Warnw("Public API key rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Error:     "مفتاح API غير صالح",
				ErrorCode: http.StatusUnauthorized,
			}, http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func validAPIKey(key, demoKey, livePrefix string) bool {
	if key == "" {
		return false
	}
	if demoKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(demoKey)) == 1 {
		return true
	}
	return livePrefix != "" && strings.HasPrefix(key, livePrefix) && len(key) > len(livePrefix)
}
