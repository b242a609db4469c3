package identity

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/Dhoini/subscription-commerce/config"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"google.golang.org/api/option"
)

// NewFirebaseAuth инициализирует Firebase Admin SDK и возвращает клиент Auth.
// Учетные данные берутся из файла или из base64 JSON.
func NewFirebaseAuth(ctx context.Context, cfg config.AuthConfig) (*auth.Client, error) {
	if cfg.FirebaseProjectID == "" {
		return nil, errors.New("firebase project id must be set")
	}

	var opt option.ClientOption
	switch {
	case cfg.FirebaseCredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	case cfg.FirebaseCredentialsJSON != "":
		jsonKey, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredentialsJSON)
		if err != nil {
			return nil, errors.New("firebase credentials json is not valid base64")
		}
		opt = option.WithCredentialsJSON(jsonKey)
	default:
		return nil, errors.New("either firebase credentials file or json must be set")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}
	return client, nil
}

// firebaseAuth часть *auth.Client, которую использует сервис
type firebaseAuth interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Provider создает учетные записи у провайдера идентификации.
// Занятый логин возвращает domain.ErrAccountExists.
type Provider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
}

// FirebaseProvider создает аккаунты и проверяет ID-токены через Firebase Auth
type FirebaseProvider struct {
	client firebaseAuth
	log    *logger.Logger
}

// NewFirebaseProvider создает провайдера поверх клиента Firebase Auth
func NewFirebaseProvider(client *auth.Client, log *logger.Logger) *FirebaseProvider {
	return &FirebaseProvider{client: client, log: log}
}

// CreateUser создает аккаунт с логином email и временным паролем
func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		EmailVerified(false)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}

	user, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) || auth.IsPhoneNumberAlreadyExists(err) || auth.IsUIDAlreadyExists(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrAccountExists, email)
		}
		p.log.Errorw("Firebase CreateUser failed", "email", email, "error", err)
		return "", domain.NewExternalServiceError("firebase", "create_user", "failed to create account", 0, err)
	}

	p.log.Infow("Firebase account created", "uid", user.UID, "email", email)
	return user.UID, nil
}

// Validate проверяет Firebase ID-токен
func (p *FirebaseProvider) Validate(ctx context.Context, token string) (*Claims, error) {
	tok, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	claims := &Claims{UserID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		claims.Email = email
	}
	if admin, ok := tok.Claims["admin"].(bool); ok && admin {
		claims.Role = RoleAdmin
	}
	return claims, nil
}

// DisabledProvider используется, когда провайдер не поддерживает создание аккаунтов
type DisabledProvider struct{}

func (DisabledProvider) CreateUser(context.Context, string, string, string) (string, error) {
	return "", domain.NewExternalServiceError("identity", "create_user", "account provisioning is not configured", 0, nil)
}
