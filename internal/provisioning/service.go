// Package provisioning создает клиентам учетные записи для входа по номеру телефона.
package provisioning

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/phone"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// Сообщения результата для администратора
const (
	ErrMsgPhoneRegistered = "رقم الجوال مسجل مسبقاً"
	ErrMsgPhoneInvalid    = "رقم الجوال غير صالح"
	ErrMsgNotFound        = "العميل غير موجود"
	ErrMsgCreateFailed    = "تعذر إنشاء الحساب"
	ErrMsgLinkFailed      = "تم إنشاء الحساب لكن تعذر ربطه بالعميل"
)

// Request клиент, которому нужна учетная запись
type Request struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
}

// Result итог по одному клиенту. Пароль возвращается только один раз.
type Result struct {
	CustomerID uuid.UUID `json:"customerId"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Password   string    `json:"password,omitempty"`
}

// CustomerStore чтение клиента и привязка учетной записи
type CustomerStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	LinkAuthAccount(ctx context.Context, id uuid.UUID, authUserID, phoneAuth string) error
}

// Service создает учетные записи пакетно, ошибка по одному клиенту не прерывает пакет
type Service struct {
	customers CustomerStore
	provider  identity.Provider
	publisher kafka.Publisher
	metrics   metrics.CommerceMetrics
	passwords func() string
	log       *logger.Logger
}

// NewService создает сервис выдачи учетных записей
func NewService(customers CustomerStore, provider identity.Provider, publisher kafka.Publisher, m metrics.CommerceMetrics, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	if m == nil {
		m = metrics.NopMetrics{}
	}
	return &Service{
		customers: customers,
		provider:  provider,
		publisher: publisher,
		metrics:   m,
		passwords: rand.Text,
		log:       log,
	}
}

// ProvisionAccounts создает учетную запись для каждого клиента из списка
func (s *Service) ProvisionAccounts(ctx context.Context, requests []Request) ([]Result, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: customers list is empty", domain.ErrInvalidInput)
	}

	results := make([]Result, 0, len(requests))
	succeeded := 0
	for _, r := range requests {
		res := s.provision(ctx, r)
		if res.Success {
			succeeded++
			s.metrics.IncProvisioning(metrics.OutcomeSuccess)
		} else {
			s.metrics.IncProvisioning(metrics.OutcomeFailed)
		}
		results = append(results, res)
	}

	s.log.Infow("Account provisioning finished", "total", len(requests), "succeeded", succeeded)
	return results, nil
}

func (s *Service) provision(ctx context.Context, r Request) Result {
	res := Result{CustomerID: r.ID}

	normalized, err := phone.Normalize(r.Phone)
	if err != nil {
		s.log.Warnw("Skipping customer with invalid phone", "customerID", r.ID, "error", err)
		res.Error = ErrMsgPhoneInvalid
		return res
	}

	customer, err := s.customers.GetByID(ctx, r.ID)
	if err != nil {
		s.log.Warnw("Customer for provisioning not found", "customerID", r.ID, "error", err)
		res.Error = ErrMsgNotFound
		if !errors.Is(err, domain.ErrNotFound) {
			res.Error = ErrMsgCreateFailed
		}
		return res
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = customer.Name
	}

	password := s.passwords()
	uid, err := s.provider.CreateUser(ctx, phone.LoginEmail(normalized), password, name)
	if err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			s.log.Infow("Account already registered for phone", "customerID", r.ID, "phone", normalized)
			res.Error = ErrMsgPhoneRegistered
			return res
		}
		s.log.Errorw("Failed to create account", "customerID", r.ID, "error", err)
		res.Error = ErrMsgCreateFailed
		return res
	}

	if err := s.customers.LinkAuthAccount(ctx, r.ID, uid, normalized); err != nil {
		s.log.Errorw("Failed to link account to customer", "customerID", r.ID, "uid", uid, "error", err)
		res.Error = ErrMsgLinkFailed
		return res
	}

	err = s.publisher.PublishAccountProvisioned(ctx, kafka.AccountProvisionedEvent{
		CustomerID: r.ID,
		AuthUserID: uid,
		Phone:      normalized,
		Timestamp:  time.Now(),
	})
	if err != nil {
		s.log.Warnw("Failed to publish account provisioned event", "customerID", r.ID, "error", err)
	}

	s.log.Infow("Account provisioned", "customerID", r.ID, "uid", uid)
	res.Success = true
	res.Phone = normalized
	res.Password = password
	return res
}
