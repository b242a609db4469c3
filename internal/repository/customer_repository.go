package repository

import (
	"context"
	"slices"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// InMemoryCustomerRepository реализация репозитория клиентов в памяти
type InMemoryCustomerRepository struct {
	db  *InMemoryDB
	log *logger.Logger
}

// NewInMemoryCustomerRepository создает новый репозиторий клиентов в памяти
func NewInMemoryCustomerRepository(db *InMemoryDB, log *logger.Logger) *InMemoryCustomerRepository {
	return &InMemoryCustomerRepository{db: db, log: log}
}

// GetByID возвращает клиента по ID
func (r *InMemoryCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	customer, exists := r.db.customers[id]
	if !exists {
		return domain.Customer{}, domain.NewNotFoundError("customer", id.String())
	}
	return customer, nil
}

// FindByAuthUserID ищет клиента по ID в провайдере идентификации
func (r *InMemoryCustomerRepository) FindByAuthUserID(ctx context.Context, authUserID string) (domain.Customer, error) {
	return r.find(func(c domain.Customer) bool {
		return authUserID != "" && c.AuthUserID == authUserID
	})
}

// FindByEmail ищет клиента по email без учета регистра
func (r *InMemoryCustomerRepository) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return r.find(func(c domain.Customer) bool {
		return email != "" && strings.EqualFold(c.Email, email)
	})
}

// FindByPhones ищет клиента, у которого телефон совпадает с одним из вариантов
func (r *InMemoryCustomerRepository) FindByPhones(ctx context.Context, phones []string) (domain.Customer, error) {
	return r.find(func(c domain.Customer) bool {
		return c.Phone != "" && slices.Contains(phones, c.Phone)
	})
}

// find возвращает самого раннего клиента, подходящего под условие
func (r *InMemoryCustomerRepository) find(match func(domain.Customer) bool) (domain.Customer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var found *domain.Customer
	for _, c := range r.db.customers {
		if !match(c) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			c := c
			found = &c
		}
	}
	if found == nil {
		return domain.Customer{}, ErrNotFound
	}
	return *found, nil
}

// Create создает нового клиента
func (r *InMemoryCustomerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	if _, exists := r.db.customers[customer.ID]; exists {
		return domain.Customer{}, domain.NewDuplicateError("customer", "id", customer.ID.String())
	}
	// Проверка на уникальность email
	if customer.Email != "" {
		for _, c := range r.db.customers {
			if strings.EqualFold(c.Email, customer.Email) {
				return domain.Customer{}, domain.NewDuplicateError("customer", "email", customer.Email)
			}
		}
	}

	now := r.db.now()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	r.db.customers[customer.ID] = customer

	r.log.Debugw("Customer created", "customerID", customer.ID)
	return customer, nil
}

// Update перезаписывает контактные данные клиента (последняя запись побеждает)
func (r *InMemoryCustomerRepository) Update(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, exists := r.db.customers[customer.ID]
	if !exists {
		return domain.Customer{}, domain.NewNotFoundError("customer", customer.ID.String())
	}

	existing.Name = customer.Name
	existing.Email = customer.Email
	existing.Phone = customer.Phone
	existing.Address = customer.Address
	if customer.AuthUserID != "" {
		existing.AuthUserID = customer.AuthUserID
	}
	if customer.PhoneAuth != "" {
		existing.PhoneAuth = customer.PhoneAuth
	}
	existing.UpdatedAt = r.db.now()
	r.db.customers[customer.ID] = existing

	return existing, nil
}

// LinkAuthAccount сохраняет ID учетной записи и нормализованный телефон для входа
func (r *InMemoryCustomerRepository) LinkAuthAccount(ctx context.Context, id uuid.UUID, authUserID, phoneAuth string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, exists := r.db.customers[id]
	if !exists {
		return domain.NewNotFoundError("customer", id.String())
	}
	c.AuthUserID = authUserID
	c.PhoneAuth = phoneAuth
	c.UpdatedAt = r.db.now()
	r.db.customers[id] = c
	return nil
}
