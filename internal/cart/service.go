package cart

import (
	"context"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// Catalog источник справочных данных о тарифах
type Catalog interface {
	GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error)
}

// Service операции над корзиной сессии.
// Каждая мутация синхронно сохраняет всю корзину; последняя запись побеждает.
type Service struct {
	store   session.Store
	catalog Catalog
	log     *logger.Logger
}

// NewService создает сервис корзины
func NewService(store session.Store, catalog Catalog, log *logger.Logger) *Service {
	return &Service{store: store, catalog: catalog, log: log}
}

// Get возвращает корзину сессии (пустую, если ее еще нет)
func (s *Service) Get(ctx context.Context, sessionID string) (Cart, error) {
	c, _, err := session.GetJSON[Cart](ctx, s.store, session.CartKey(sessionID))
	if err != nil {
		return Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}
	return c, nil
}

// AddToCart добавляет тариф в корзину
func (s *Service) AddToCart(ctx context.Context, sessionID string, productID, tierID uuid.UUID, qty int) (Cart, error) {
	product, tier, err := s.catalog.GetTier(ctx, tierID)
	if err != nil {
		return Cart{}, err
	}
	if product.ID != productID {
		return Cart{}, fmt.Errorf("%w: tier %s does not belong to product %s", domain.ErrInvalidInput, tierID, productID)
	}
	if !tier.Active || !product.Active {
		return Cart{}, fmt.Errorf("%w: tier %s is not available", domain.ErrInvalidInput, tierID)
	}

	return s.mutate(ctx, sessionID, func(c *Cart) error {
		return c.AddToCart(product, tier, qty)
	})
}

// UpdateQuantity меняет количество позиции; qty <= 0 удаляет ее
func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, productID, tierID uuid.UUID, qty int) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		return c.UpdateQuantity(productID, tierID, qty)
	})
}

// RemoveFromCart удаляет позицию
func (s *Service) RemoveFromCart(ctx context.Context, sessionID string, productID, tierID uuid.UUID) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		c.RemoveFromCart(productID, tierID)
		return nil
	})
}

// Clear удаляет корзину сессии
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, session.CartKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.log.Debugw("Cart cleared", "session", sessionID)
	return nil
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	if err := fn(&c); err != nil {
		return Cart{}, err
	}
	if err := session.SetJSON(ctx, s.store, session.CartKey(sessionID), c); err != nil {
		return Cart{}, fmt.Errorf("failed to save cart: %w", err)
	}
	s.log.Debugw("Cart saved", "session", sessionID, "lines", len(c.Lines), "items", c.ItemCount())
	return c, nil
}
