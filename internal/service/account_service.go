package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/req"
)

// Dashboard сводка личного кабинета клиента
type Dashboard struct {
	Customer            domain.Customer       `json:"customer"`
	ActiveSubscriptions int                   `json:"active_subscriptions"`
	UnpaidInvoices      int                   `json:"unpaid_invoices"`
	NextExpiry          *time.Time            `json:"next_expiry,omitempty"`
	Subscriptions       []domain.Subscription `json:"subscriptions"`
	Invoices            []domain.Invoice      `json:"invoices"`
}

// AccountService интерфейс сервиса личного кабинета.
// Клиент определяется по claims вошедшего пользователя.
type AccountService interface {
	Dashboard(ctx context.Context, claims *identity.Claims) (Dashboard, error)
	Subscriptions(ctx context.Context, claims *identity.Claims) ([]domain.Subscription, error)
	Invoices(ctx context.Context, claims *identity.Claims) ([]domain.Invoice, error)
	RequestSubscription(ctx context.Context, claims *identity.Claims, input domain.SubscriptionRequestInput) (domain.SubscriptionRequest, error)
}

type accountService struct {
	customers     identity.Index
	subscriptions repository.SubscriptionRepository
	catalog       repository.CatalogRepository
	now           func() time.Time
	log           *logger.Logger
}

// NewAccountService создает новый сервис личного кабинета
func NewAccountService(customers identity.Index, subscriptions repository.SubscriptionRepository, catalog repository.CatalogRepository, log *logger.Logger) AccountService {
	return &accountService{
		customers:     customers,
		subscriptions: subscriptions,
		catalog:       catalog,
		now:           time.Now,
		log:           log,
	}
}

func (s *accountService) Dashboard(ctx context.Context, claims *identity.Claims) (Dashboard, error) {
	customer, err := s.customer(ctx, claims)
	if err != nil {
		return Dashboard{}, err
	}

	subs, err := s.subscriptions.ListByCustomer(ctx, customer.ID)
	if err != nil {
		s.log.Errorw("Failed to list subscriptions", "customerID", customer.ID, "error", err)
		return Dashboard{}, err
	}
	invoices, err := s.subscriptions.ListInvoicesByCustomer(ctx, customer.ID)
	if err != nil {
		s.log.Errorw("Failed to list invoices", "customerID", customer.ID, "error", err)
		return Dashboard{}, err
	}

	d := Dashboard{Customer: customer, Subscriptions: subs, Invoices: invoices}
	today := domain.Today(s.now())
	for _, sub := range subs {
		if sub.Status != domain.SubscriptionStatusActive || sub.EndDate.Before(today) {
			continue
		}
		d.ActiveSubscriptions++
		if d.NextExpiry == nil || sub.EndDate.Before(*d.NextExpiry) {
			end := sub.EndDate
			d.NextExpiry = &end
		}
	}
	for _, inv := range invoices {
		if inv.Status != domain.InvoiceStatusPaid {
			d.UnpaidInvoices++
		}
	}
	return d, nil
}

func (s *accountService) Subscriptions(ctx context.Context, claims *identity.Claims) ([]domain.Subscription, error) {
	customer, err := s.customer(ctx, claims)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Getting subscriptions for customer: %s", customer.ID)
	return s.subscriptions.ListByCustomer(ctx, customer.ID)
}

func (s *accountService) Invoices(ctx context.Context, claims *identity.Claims) ([]domain.Invoice, error) {
	customer, err := s.customer(ctx, claims)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Getting invoices for customer: %s", customer.ID)
	return s.subscriptions.ListInvoicesByCustomer(ctx, customer.ID)
}

func (s *accountService) RequestSubscription(ctx context.Context, claims *identity.Claims, input domain.SubscriptionRequestInput) (domain.SubscriptionRequest, error) {
	input.Notes = strings.TrimSpace(input.Notes)
	if err := req.IsValid(input); err != nil {
		var verrs domain.ValidationErrors
		for _, fe := range req.FieldErrors(err) {
			verrs.Add(fe.Field, "قيمة غير صالحة")
		}
		if !verrs.HasErrors() {
			return domain.SubscriptionRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return domain.SubscriptionRequest{}, verrs
	}

	customer, err := s.customer(ctx, claims)
	if err != nil {
		return domain.SubscriptionRequest{}, err
	}

	product, tier, err := s.catalog.GetTier(ctx, input.PricingTierID)
	if err != nil {
		return domain.SubscriptionRequest{}, err
	}
	if !tier.Active || !product.Active {
		var verrs domain.ValidationErrors
		verrs.Add("pricing_tier_id", "الباقة غير متاحة")
		return domain.SubscriptionRequest{}, verrs
	}

	created, err := s.subscriptions.CreateRequest(ctx, domain.SubscriptionRequest{
		CustomerID:    customer.ID,
		PricingTierID: tier.ID,
		Notes:         input.Notes,
	})
	if err != nil {
		s.log.Errorw("Failed to create subscription request", "customerID", customer.ID, "tierID", tier.ID, "error", err)
		return domain.SubscriptionRequest{}, err
	}

	s.log.Infow("Subscription request created", "requestID", created.ID, "customerID", customer.ID, "tierID", tier.ID)
	return created, nil
}

// customer находит запись клиента вошедшего пользователя
func (s *accountService) customer(ctx context.Context, claims *identity.Claims) (domain.Customer, error) {
	if claims == nil || claims.UserID == "" {
		return domain.Customer{}, domain.ErrUnauthenticated
	}

	customer, found, err := identity.ResolveCustomer(ctx, s.customers, identity.Lookup{
		AuthUserID: claims.UserID,
		Email:      claims.Email,
	})
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to resolve customer: %w", err)
	}
	if !found {
		s.log.Warn("No customer record for user: %s", claims.UserID)
		return domain.Customer{}, domain.NewNotFoundError("customer", claims.UserID)
	}
	return customer, nil
}
