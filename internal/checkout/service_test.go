package checkout

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/cart"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinks struct {
	requests  []payment.LinkRequest
	err       error
	noOrderID bool
}

func (f *fakeLinks) CreatePaymentLink(_ context.Context, r payment.LinkRequest) (payment.Link, error) {
	f.requests = append(f.requests, r)
	if f.err != nil {
		return payment.Link{}, f.err
	}
	if f.noOrderID {
		return payment.Link{URL: "https://pay.example/approve/PP-1"}, nil
	}
	return payment.Link{URL: "https://pay.example/approve/PP-1", ProviderOrderID: "PP-1"}, nil
}

type fixture struct {
	svc       *Service
	carts     *cart.Service
	store     *session.MemoryStore
	db        *repository.InMemoryDB
	customers *repository.InMemoryCustomerRepository
	orders    *repository.InMemoryOrderRepository
	links     *fakeLinks
	product   domain.Product
	tier      domain.PricingTier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()

	db := repository.NewInMemoryDB()
	product := domain.Product{ID: uuid.New(), Name: "Fiber", Active: true}
	tier := domain.PricingTier{
		ID:             uuid.New(),
		Name:           "Monthly",
		Price:          decimal.NewFromInt(50),
		DurationMonths: 1,
		Active:         true,
	}
	product.Tiers = []domain.PricingTier{tier}
	db.SeedProduct(product)
	tier.ProductID = product.ID

	store := session.NewMemoryStore()
	carts := cart.NewService(store, repository.NewInMemoryCatalogRepository(db, log), log)
	customers := repository.NewInMemoryCustomerRepository(db, log)
	orders := repository.NewInMemoryOrderRepository(db, log)
	links := &fakeLinks{}

	svc := NewService(Dependencies{
		Store:     store,
		Carts:     carts,
		Customers: customers,
		Orders:    orders,
		Links:     links,
		Converter: payment.NewConverter(payment.DefaultRate),
	}, Options{
		Provider:  "paypal",
		ReturnURL: "https://shop.example/api/v1/checkout/return",
		CancelURL: "https://shop.example/cart",
	}, log)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	return &fixture{
		svc: svc, carts: carts, store: store, db: db,
		customers: customers, orders: orders, links: links,
		product: product, tier: tier,
	}
}

func (f *fixture) fillCart(t *testing.T, sid string, qty int) {
	t.Helper()
	_, err := f.carts.AddToCart(context.Background(), sid, f.product.ID, f.tier.ID, qty)
	require.NoError(t, err)
}

func (f *fixture) toPaymentStep(t *testing.T, sid string) State {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Start(ctx, sid)
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, sid)
	require.NoError(t, err)
	st, err := f.svc.SubmitCustomer(ctx, sid, &identity.Claims{UserID: "uid-1"}, domain.CustomerInfo{
		Name:  "Sara",
		Email: "Sara@Example.com",
		Phone: "050 123 4567",
	})
	require.NoError(t, err)
	return st
}

func TestStep_CanTransitionTo(t *testing.T) {
	assert.True(t, StepReview.CanTransitionTo(StepCustomer))
	assert.True(t, StepCustomer.CanTransitionTo(StepPayment))
	assert.True(t, StepPayment.CanTransitionTo(StepSuccess))
	assert.True(t, StepPayment.CanTransitionTo(StepCustomer))
	assert.True(t, StepCustomer.CanTransitionTo(StepReview))

	assert.False(t, StepReview.CanTransitionTo(StepPayment))
	assert.False(t, StepCustomer.CanTransitionTo(StepSuccess))
	assert.False(t, StepSuccess.CanTransitionTo(StepReview))
	assert.False(t, StepSuccess.CanTransitionTo(StepPayment))
}

func TestStart_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Start(context.Background(), "sid")
	assert.ErrorIs(t, err, domain.ErrCartEmpty)

	_, err = f.svc.State(context.Background(), "sid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckout_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, "sid", 2)

	st, err := f.svc.Start(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepReview, st.Step)
	assert.True(t, st.Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, st.SettlementTotal.Equal(decimal.RequireFromString("27")))

	st = f.toPaymentStep(t, "sid")
	assert.Equal(t, StepPayment, st.Step)
	require.True(t, st.HasCustomer())

	customer, err := f.customers.GetByID(ctx, st.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "sara@example.com", customer.Email)
	assert.Equal(t, "+966501234567", customer.PhoneAuth)
	assert.Equal(t, "uid-1", customer.AuthUserID)

	st, err = f.svc.SubmitPayment(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	assert.Equal(t, "ORD-1772359200000", st.OrderID)
	assert.Equal(t, "https://pay.example/approve/PP-1", st.PaymentURL)
	assert.True(t, st.PaymentAttempted)

	require.Len(t, f.links.requests, 1)
	linkReq := f.links.requests[0]
	assert.True(t, linkReq.Amount.Equal(decimal.RequireFromString("27")))
	assert.Equal(t, "USD", linkReq.Currency)
	assert.Equal(t, st.OrderID, linkReq.ReferenceID)
	assert.Equal(t, "Subscription order: 2 item(s) - Fiber (Monthly)", linkReq.Description)

	returnURL, err := url.Parse(linkReq.ReturnURL)
	require.NoError(t, err)
	assert.Equal(t, st.OrderToken.String(), returnURL.Query().Get("order"))

	order, err := f.orders.GetPendingOrder(ctx, st.OrderToken)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, "PP-1", order.ProviderOrderID)
	assert.Equal(t, customer.ID, order.CustomerID)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Quantity)

	token, found, err := session.GetJSON[uuid.UUID](ctx, f.store, session.PendingOrderKey("sid"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, st.OrderToken, token)

	// success терминален
	_, err = f.svc.Previous(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestSubmitPayment_NeverSkipsCustomerStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, "sid", 1)

	_, err := f.svc.SubmitPayment(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Start(ctx, "sid")
	require.NoError(t, err)
	_, err = f.svc.SubmitPayment(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.svc.Next(ctx, "sid")
	require.NoError(t, err)
	_, err = f.svc.SubmitPayment(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	assert.Empty(t, f.links.requests)
}

func TestSubmitPayment_LinkWithoutProviderOrderIDFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, "sid", 1)
	f.toPaymentStep(t, "sid")

	f.links.noOrderID = true
	st, err := f.svc.SubmitPayment(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	assert.Equal(t, StepPayment, st.Step)
	assert.Empty(t, st.PaymentURL)

	require.Len(t, f.links.requests, 1)
	returnURL, err := url.Parse(f.links.requests[0].ReturnURL)
	require.NoError(t, err)
	token, err := uuid.Parse(returnURL.Query().Get("order"))
	require.NoError(t, err)

	order, err := f.orders.GetPendingOrder(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.Empty(t, order.ProviderOrderID)
}

func TestSubmitPayment_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, "sid", 1)
	f.toPaymentStep(t, "sid")

	f.links.err = domain.NewExternalServiceError("paypal", "create_order", "boom", 503, nil)
	st, err := f.svc.SubmitPayment(ctx, "sid")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	assert.Equal(t, StepPayment, st.Step)
	assert.NotEmpty(t, st.LastError)
	assert.True(t, st.PaymentAttempted)

	_, found, err := session.GetJSON[uuid.UUID](ctx, f.store, session.PendingOrderKey("sid"))
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := f.svc.State(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepPayment, stored.Step)
	assert.Equal(t, st.LastError, stored.LastError)

	// повторная попытка после восстановления провайдера
	f.links.err = nil
	st, err = f.svc.SubmitPayment(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	assert.Empty(t, st.LastError)
	assert.Len(t, f.links.requests, 2)
}

func TestSubmitPayment_WrapsPlainErrors(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "sid", 1)
	f.toPaymentStep(t, "sid")

	f.links.err = errors.New("connection refused")
	_, err := f.svc.SubmitPayment(context.Background(), "sid")

	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "paypal", ext.Service)
	assert.True(t, ext.Retryable())
}

func TestSubmitCustomer_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, "sid", 1)
	_, err := f.svc.Start(ctx, "sid")
	require.NoError(t, err)

	_, err = f.svc.SubmitCustomer(ctx, "sid", nil, domain.CustomerInfo{Name: "Ali", Phone: "0501234567"})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.svc.Next(ctx, "sid")
	require.NoError(t, err)

	_, err = f.svc.SubmitCustomer(ctx, "sid", nil, domain.CustomerInfo{Name: "  ", Email: "not-an-email"})
	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.ElementsMatch(t, []string{"name", "phone", "email"}, verrs.Fields())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.SubmitCustomer(ctx, "sid", nil, domain.CustomerInfo{Name: "Ali", Phone: "05-abc"})
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"phone"}, verrs.Fields())

	st, err := f.svc.State(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepCustomer, st.Step)
	assert.False(t, st.HasCustomer())
}

func TestSubmitCustomer_UpdatesExistingByPhoneVariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existingID := uuid.New()
	f.db.SeedCustomer(domain.Customer{ID: existingID, Name: "Old", Phone: "966501234567"})

	f.fillCart(t, "sid", 1)
	_, err := f.svc.Start(ctx, "sid")
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, "sid")
	require.NoError(t, err)

	st, err := f.svc.SubmitCustomer(ctx, "sid", nil, domain.CustomerInfo{Name: "New Name", Phone: "0501234567"})
	require.NoError(t, err)
	assert.Equal(t, existingID, st.CustomerID)

	customer, err := f.customers.GetByID(ctx, existingID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", customer.Name)
	assert.Equal(t, "0501234567", customer.Phone)
}

func TestSubmitCustomer_DoesNotTakeOverLinkedCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	victimID := uuid.New()
	f.db.SeedCustomer(domain.Customer{
		ID: victimID, Name: "Victim", Email: "victim@example.com",
		Phone: "0501234567", PhoneAuth: "+966501234567", AuthUserID: "uid-victim",
	})

	f.fillCart(t, "sid", 1)
	_, err := f.svc.Start(ctx, "sid")
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, "sid")
	require.NoError(t, err)

	attacker := &identity.Claims{UserID: "uid-attacker", Email: "attacker@example.com"}
	st, err := f.svc.SubmitCustomer(ctx, "sid", attacker, domain.CustomerInfo{Name: "Attacker", Phone: "0501234567"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Equal(t, StepCustomer, st.Step)
	assert.False(t, st.HasCustomer())

	_, err = f.svc.SubmitCustomer(ctx, "sid", attacker, domain.CustomerInfo{Name: "Attacker", Email: "victim@example.com", Phone: "0559998888"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	victim, err := f.customers.GetByID(ctx, victimID)
	require.NoError(t, err)
	assert.Equal(t, "uid-victim", victim.AuthUserID)
	assert.Equal(t, "Victim", victim.Name)

	// владелец записи по-прежнему может ее обновить
	owner := &identity.Claims{UserID: "uid-victim"}
	st, err = f.svc.SubmitCustomer(ctx, "sid", owner, domain.CustomerInfo{Name: "Victim Updated", Phone: "0501234567"})
	require.NoError(t, err)
	assert.Equal(t, victimID, st.CustomerID)
}

func TestPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fillCart(t, "sid", 1)

	_, err := f.svc.Start(ctx, "sid")
	require.NoError(t, err)
	_, err = f.svc.Previous(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	f.toPaymentStep(t, "sid")
	st, err := f.svc.Previous(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepCustomer, st.Step)
	assert.True(t, st.HasCustomer())

	st, err = f.svc.Previous(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StepReview, st.Step)

	require.NoError(t, f.svc.Reset(ctx, "sid"))
	_, err = f.svc.State(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
