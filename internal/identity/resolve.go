package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/phone"
)

// Index индекс клиентов только для чтения.
// Методы возвращают domain.ErrNotFound, если запись не найдена.
type Index interface {
	FindByAuthUserID(ctx context.Context, authUserID string) (domain.Customer, error)
	FindByEmail(ctx context.Context, email string) (domain.Customer, error)
	FindByPhones(ctx context.Context, phones []string) (domain.Customer, error)
}

// Lookup известные идентификаторы пользователя
type Lookup struct {
	AuthUserID string
	Email      string
	Phone      string
}

// ResolveCustomer ищет клиента по идентификаторам в порядке приоритета:
// ID в провайдере идентификации, затем email, затем варианты записи телефона.
// Возвращает первое совпадение; found == false, если ни один ключ не подошел.
func ResolveCustomer(ctx context.Context, idx Index, lk Lookup) (customer domain.Customer, found bool, err error) {
	if lk.AuthUserID != "" {
		customer, err = idx.FindByAuthUserID(ctx, lk.AuthUserID)
		if hit, err := settle(err); hit || err != nil {
			return customer, hit, err
		}
	}

	if email := strings.ToLower(strings.TrimSpace(lk.Email)); email != "" {
		customer, err = idx.FindByEmail(ctx, email)
		if hit, err := settle(err); hit || err != nil {
			return customer, hit, err
		}
	}

	if strings.TrimSpace(lk.Phone) != "" {
		customer, err = idx.FindByPhones(ctx, phone.Variants(lk.Phone))
		if hit, err := settle(err); hit || err != nil {
			return customer, hit, err
		}
	}

	return domain.Customer{}, false, nil
}

func settle(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
