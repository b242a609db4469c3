package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// Ключи значений в контексте gin
const (
	ContextUserIDKey    = "userID"
	ContextUserEmailKey = "userEmail"
	ContextClaimsKey    = "claims"
	ContextSessionIDKey = "sessionID"
)

const authHeaderPrefix = "Bearer "

// AuthMiddleware проверяет токен пользователя через провайдера идентификации
type AuthMiddleware struct {
	validator   identity.TokenValidator
	adminEmails []string
	log         *logger.Logger
}

// NewAuthMiddleware создает middleware аутентификации.
// adminEmails дополняет роль admin из токена.
func NewAuthMiddleware(validator identity.TokenValidator, adminEmails []string, log *logger.Logger) *AuthMiddleware {
	emails := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	return &AuthMiddleware{validator: validator, adminEmails: emails, log: log}
}

// RequireAuth пропускает только запросы с действительным Bearer-токеном
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, authHeaderPrefix) {
			m.handleAuthError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, authHeaderPrefix))
		claims, err := m.validator.Validate(c.Request.Context(), tokenString)
		if err != nil {
			m.handleAuthError(c, http.StatusUnauthorized, err.Error())
			return
		}

		if claims.Role == "" && slices.Contains(m.adminEmails, strings.ToLower(claims.Email)) {
			claims.Role = identity.RoleAdmin
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUserEmailKey, claims.Email)
		c.Set(ContextClaimsKey, claims)
		m.log.Debugw("User authenticated", "userID", claims.UserID)
		c.Next()
	}
}

// RequireAdmin ставится после RequireAuth
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ClaimsFrom(c).IsAdmin() {
			m.handleAuthError(c, http.StatusForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) handleAuthError(c *gin.Context, status int, reason string) {
	m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "status", status, "reason", reason)
	message := "يجب تسجيل الدخول"
	if status == http.StatusForbidden {
		message = "ليس لديك صلاحية للوصول"
	}
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: status,
	}, status)
	c.Abort()
}

// ClaimsFrom возвращает claims, сохраненные RequireAuth, или nil
func ClaimsFrom(c *gin.Context) *identity.Claims {
	v, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*identity.Claims)
	return claims
}
