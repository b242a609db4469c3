package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer представляет собой модель клиента
type Customer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email,omitempty" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	PhoneAuth  string    `json:"phone_auth,omitempty" db:"phone_auth"`     // нормализованный номер, используется как логин
	Address    string    `json:"address,omitempty" db:"address"`
	AuthUserID string    `json:"auth_user_id,omitempty" db:"auth_user_id"` // ID в провайдере идентификации
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// HasEmail есть ли у клиента адрес для уведомлений
func (c Customer) HasEmail() bool {
	return c.Email != ""
}

// CustomerInfo данные клиента, введенные на шаге оформления заказа
type CustomerInfo struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address"`
}
