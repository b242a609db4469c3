package middleware

import (
	"net/http"
	"strings"

	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// SessionHeader заголовок с идентификатором сессии браузера
const SessionHeader = "X-Session-ID"

const maxSessionIDLength = 128

// SessionID определяет сессию корзины: заголовок X-Session-ID,
// иначе ID вошедшего пользователя. Сессия вошедшего пользователя
// всегда начинается с его ID, чужой заголовок не открывает чужую корзину.
func SessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := strings.TrimSpace(c.GetHeader(SessionHeader))
		valid := len(sid) <= maxSessionIDLength
		if userID := c.GetString(ContextUserIDKey); userID != "" && valid {
			sid = ScopedSessionID(userID, sid)
		}
		if sid == "" || !valid {
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Error:     "معرف الجلسة مفقود",
				ErrorCode: http.StatusBadRequest,
			}, http.StatusBadRequest)
			c.Abort()
			return
		}
		c.Set(ContextSessionIDKey, sid)
		c.Next()
	}
}

// ScopedSessionID ключ сессии пользователя: userID или userID:sid
func ScopedSessionID(userID, sid string) string {
	if sid == "" || sid == userID {
		return userID
	}
	return userID + ":" + sid
}
