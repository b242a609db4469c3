package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

// Claims данные аутентифицированного пользователя
type Claims struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin пользователь с ролью администратора
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// TokenValidator проверяет токен сессии и возвращает его claims
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// jwtClaims формат HMAC-токена
type jwtClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator проверяет HMAC-подписанные JWT
type JWTValidator struct {
	Secret []byte
}

// NewJWTValidator создает валидатор с общим секретом
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{Secret: []byte(secret)}
}

// Validate реализует TokenValidator
func (v *JWTValidator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", domain.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: invalid token signature", domain.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		default:
			return nil, fmt.Errorf("%w: invalid token: %v", domain.ErrUnauthenticated, err)
		}
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing in token", domain.ErrUnauthenticated)
	}

	return &Claims{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// Issue подписывает токен для пользователя (локальная разработка и тесты)
func (v *JWTValidator) Issue(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email: c.Email,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.Secret)
}
