package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/cart"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/internal/phone"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/req"
	"github.com/google/uuid"
)

// Сообщения для пользователя
const (
	msgPaymentLinkFailed = "تعذر إنشاء رابط الدفع، يرجى المحاولة مرة أخرى"
	msgNameRequired      = "الاسم مطلوب"
	msgPhoneRequired     = "رقم الجوال مطلوب"
	msgPhoneInvalid      = "رقم الجوال غير صالح"
	msgEmailInvalid      = "البريد الإلكتروني غير صالح"
)

// CartReader источник корзины сессии
type CartReader interface {
	Get(ctx context.Context, sessionID string) (cart.Cart, error)
}

// CustomerStore поиск и сохранение клиентов
type CustomerStore interface {
	identity.Index
	Create(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	Update(ctx context.Context, customer domain.Customer) (domain.Customer, error)
}

// OrderStore серверные записи ожидающих заказов
type OrderStore interface {
	CreatePendingOrder(ctx context.Context, order domain.PendingOrder) error
	UpdateOrderStatus(ctx context.Context, token uuid.UUID, status domain.OrderStatus) error
	SetProviderOrderID(ctx context.Context, token uuid.UUID, providerOrderID string) error
}

// Options параметры оплаты
type Options struct {
	Provider           string
	SourceCurrency     string
	SettlementCurrency string
	ReturnURL          string
	CancelURL          string
}

// Dependencies зависимости сервиса оформления
type Dependencies struct {
	Store     session.Store
	Carts     CartReader
	Customers CustomerStore
	Orders    OrderStore
	Links     payment.LinkGenerator
	Converter payment.Converter
	Metrics   metrics.CommerceMetrics
}

// Service ведет сессию через шаги оформления заказа
type Service struct {
	deps Dependencies
	opts Options
	now  func() time.Time
	log  *logger.Logger
}

// NewService создает сервис оформления заказа
func NewService(deps Dependencies, opts Options, log *logger.Logger) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopMetrics{}
	}
	if opts.SourceCurrency == "" {
		opts.SourceCurrency = "SAR"
	}
	if opts.SettlementCurrency == "" {
		opts.SettlementCurrency = "USD"
	}
	return &Service{deps: deps, opts: opts, now: time.Now, log: log}
}

// State возвращает текущее состояние оформления
func (s *Service) State(ctx context.Context, sessionID string) (State, error) {
	st, found, err := session.GetJSON[State](ctx, s.deps.Store, session.CheckoutKey(sessionID))
	if err != nil {
		return State{}, fmt.Errorf("failed to load checkout state: %w", err)
	}
	if !found {
		return State{}, domain.NewNotFoundError("checkout", sessionID)
	}
	return st, nil
}

// Start начинает оформление с шага review. Пустая корзина возвращает ErrCartEmpty.
func (s *Service) Start(ctx context.Context, sessionID string) (State, error) {
	c, err := s.deps.Carts.Get(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if c.IsEmpty() {
		s.log.Infow("Checkout requested with empty cart", "session", sessionID)
		return State{}, domain.ErrCartEmpty
	}

	st := State{Step: StepReview}
	s.fillTotals(&st, c)
	s.deps.Metrics.IncCheckoutStep("start", string(StepReview))

	if err := s.save(ctx, sessionID, st); err != nil {
		return State{}, err
	}
	s.log.Infow("Checkout started", "session", sessionID, "items", c.ItemCount(), "total", st.Total.String())
	return st, nil
}

// Next переводит review -> customer
func (s *Service) Next(ctx context.Context, sessionID string) (State, error) {
	st, err := s.State(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if st.Step != StepReview {
		return st, fmt.Errorf("%w: next is only allowed from %s, current step %s", domain.ErrIllegalTransition, StepReview, st.Step)
	}

	c, err := s.deps.Carts.Get(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if c.IsEmpty() {
		return st, domain.ErrCartEmpty
	}
	s.fillTotals(&st, c)

	if err := s.transition(&st, StepCustomer); err != nil {
		return st, err
	}
	return st, s.save(ctx, sessionID, st)
}

// Previous возвращает на шаг назад: payment -> customer, customer -> review
func (s *Service) Previous(ctx context.Context, sessionID string) (State, error) {
	st, err := s.State(ctx, sessionID)
	if err != nil {
		return State{}, err
	}

	var to Step
	switch st.Step {
	case StepPayment:
		to = StepCustomer
	case StepCustomer:
		to = StepReview
	default:
		return st, fmt.Errorf("%w: cannot go back from %s", domain.ErrIllegalTransition, st.Step)
	}

	if err := s.transition(&st, to); err != nil {
		return st, err
	}
	st.LastError = ""
	return st, s.save(ctx, sessionID, st)
}

// SubmitCustomer проверяет данные клиента, находит существующую запись
// (ID провайдера, email, варианты телефона) или создает новую и переходит к оплате.
// Запись, привязанная к другому пользователю, дает ErrDuplicate.
func (s *Service) SubmitCustomer(ctx context.Context, sessionID string, claims *identity.Claims, info domain.CustomerInfo) (State, error) {
	st, err := s.State(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if st.Step != StepCustomer {
		return st, fmt.Errorf("%w: customer details are accepted only on step %s, current step %s", domain.ErrIllegalTransition, StepCustomer, st.Step)
	}

	info = trimInfo(info)
	normalized, verrs := validateCustomer(info)
	if verrs.HasErrors() {
		s.log.Warnw("Customer details validation failed", "session", sessionID, "fields", verrs.Fields())
		return st, verrs
	}

	lookup := identity.Lookup{Email: info.Email, Phone: info.Phone}
	if claims != nil {
		lookup.AuthUserID = claims.UserID
		if lookup.Email == "" {
			lookup.Email = claims.Email
		}
	}

	existing, found, err := identity.ResolveCustomer(ctx, s.deps.Customers, lookup)
	if err != nil {
		s.log.Errorw("Failed to resolve customer", "session", sessionID, "error", err)
		return st, fmt.Errorf("failed to resolve customer: %w", err)
	}

	// запись, привязанная к другому аккаунту, не переписывается
	var callerID string
	if claims != nil {
		callerID = claims.UserID
	}
	if found && existing.AuthUserID != "" && existing.AuthUserID != callerID {
		s.log.Warnw("Customer details belong to another account", "session", sessionID, "customerID", existing.ID)
		if info.Email != "" && strings.EqualFold(existing.Email, info.Email) {
			return st, domain.NewDuplicateError("customer", "email", info.Email)
		}
		return st, domain.NewDuplicateError("customer", "phone", info.Phone)
	}

	customer := existing
	customer.Name = info.Name
	customer.Phone = info.Phone
	customer.PhoneAuth = normalized
	customer.Address = info.Address
	if info.Email != "" {
		customer.Email = info.Email
	}
	if lookup.AuthUserID != "" {
		customer.AuthUserID = lookup.AuthUserID
	}

	if found {
		customer, err = s.deps.Customers.Update(ctx, customer)
	} else {
		customer.ID = uuid.New()
		customer, err = s.deps.Customers.Create(ctx, customer)
	}
	if err != nil {
		s.log.Errorw("Failed to save customer", "session", sessionID, "existing", found, "error", err)
		return st, fmt.Errorf("failed to save customer: %w", err)
	}
	s.log.Infow("Customer saved for checkout", "session", sessionID, "customerID", customer.ID, "existing", found)

	st.CustomerID = customer.ID
	st.Customer = &customer
	if err := s.transition(&st, StepPayment); err != nil {
		return st, err
	}
	return st, s.save(ctx, sessionID, st)
}

// SubmitPayment создает ожидающий заказ и запрашивает ссылку на оплату.
// При ошибке провайдера заказ помечается failed, шаг остается payment.
func (s *Service) SubmitPayment(ctx context.Context, sessionID string) (State, error) {
	st, err := s.State(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if st.Step != StepPayment {
		return st, fmt.Errorf("%w: payment is only allowed on step %s, current step %s", domain.ErrIllegalTransition, StepPayment, st.Step)
	}
	if !st.HasCustomer() {
		return st, domain.ErrCustomerRequired
	}

	c, err := s.deps.Carts.Get(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if c.IsEmpty() {
		return st, domain.ErrCartEmpty
	}
	s.fillTotals(&st, c)

	now := s.now()
	order := domain.PendingOrder{
		Token:              uuid.New(),
		OrderID:            domain.NewOrderID(now),
		SessionID:          sessionID,
		CustomerID:         st.CustomerID,
		Lines:              c.Snapshot(),
		Total:              st.Total,
		SettlementTotal:    st.SettlementTotal,
		SourceCurrency:     s.opts.SourceCurrency,
		SettlementCurrency: s.opts.SettlementCurrency,
		Status:             domain.OrderStatusCreated,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.deps.Orders.CreatePendingOrder(ctx, order); err != nil {
		s.log.Errorw("Failed to create pending order", "session", sessionID, "orderID", order.OrderID, "error", err)
		return st, fmt.Errorf("failed to create pending order: %w", err)
	}
	if err := session.SetJSON(ctx, s.deps.Store, session.PendingOrderKey(sessionID), order.Token); err != nil {
		return st, fmt.Errorf("failed to save pending order token: %w", err)
	}

	returnURL, err := withOrderToken(s.opts.ReturnURL, order.Token)
	if err != nil {
		return st, err
	}

	st.PaymentAttempted = true
	link, err := s.deps.Links.CreatePaymentLink(ctx, payment.LinkRequest{
		Amount:      order.SettlementTotal,
		Currency:    order.SettlementCurrency,
		Description: describe(c),
		ReferenceID: order.OrderID,
		ReturnURL:   returnURL,
		CancelURL:   s.opts.CancelURL,
	})
	if err != nil {
		return st, s.paymentFailed(ctx, sessionID, st, order, err)
	}

	// оплата подтверждается только по сохраненному ID заказа провайдера
	if link.ProviderOrderID == "" {
		return st, s.paymentFailed(ctx, sessionID, st, order, errors.New("provider returned no order id"))
	}
	if err := s.deps.Orders.SetProviderOrderID(ctx, order.Token, link.ProviderOrderID); err != nil {
		s.log.Errorw("Failed to store provider order id", "orderID", order.OrderID, "providerOrderID", link.ProviderOrderID, "error", err)
		return st, s.paymentFailed(ctx, sessionID, st, order, err)
	}

	s.deps.Metrics.IncPaymentLinkCreated(s.opts.Provider, order.SettlementCurrency)
	s.deps.Metrics.ObservePaymentAmount(order.SettlementTotal.InexactFloat64(), order.SettlementCurrency)

	st.OrderID = order.OrderID
	st.OrderToken = order.Token
	st.PaymentURL = link.URL
	st.LastError = ""
	if err := s.transition(&st, StepSuccess); err != nil {
		return st, err
	}
	if err := s.save(ctx, sessionID, st); err != nil {
		return st, err
	}

	s.log.Infow("Payment link created", "orderID", order.OrderID, "token", order.Token,
		"amount", order.SettlementTotal.String(), "currency", order.SettlementCurrency)
	return st, nil
}

// Reset удаляет состояние оформления сессии
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.deps.Store.Delete(ctx, session.CheckoutKey(sessionID)); err != nil {
		return fmt.Errorf("failed to reset checkout: %w", err)
	}
	return nil
}

func (s *Service) paymentFailed(ctx context.Context, sessionID string, st State, order domain.PendingOrder, cause error) error {
	s.log.Errorw("Failed to create payment link", "orderID", order.OrderID, "provider", s.opts.Provider, "error", cause)
	s.deps.Metrics.IncPaymentLinkFailed(s.opts.Provider, order.SettlementCurrency)

	if err := s.deps.Orders.UpdateOrderStatus(ctx, order.Token, domain.OrderStatusFailed); err != nil {
		s.log.Errorw("Failed to mark pending order as failed", "orderID", order.OrderID, "error", err)
	}
	if err := s.deps.Store.Delete(ctx, session.PendingOrderKey(sessionID)); err != nil {
		s.log.Warnw("Failed to clear pending order token", "session", sessionID, "error", err)
	}

	st.LastError = msgPaymentLinkFailed
	if err := s.save(ctx, sessionID, st); err != nil {
		s.log.Errorw("Failed to save checkout state", "session", sessionID, "error", err)
	}

	var ext *domain.ExternalServiceError
	if errors.As(cause, &ext) {
		return cause
	}
	return domain.NewExternalServiceError(s.opts.Provider, "create_link", "failed to create payment link", 0, cause)
}

func (s *Service) transition(st *State, to Step) error {
	if !st.Step.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, st.Step, to)
	}
	s.deps.Metrics.IncCheckoutStep(string(st.Step), string(to))
	st.Step = to
	return nil
}

func (s *Service) fillTotals(st *State, c cart.Cart) {
	st.Total = c.Total()
	st.Currency = s.opts.SourceCurrency
	st.SettlementTotal = s.deps.Converter.ToSettlementCurrency(st.Total)
	st.SettlementCurrency = s.opts.SettlementCurrency
}

func (s *Service) save(ctx context.Context, sessionID string, st State) error {
	if err := session.SetJSON(ctx, s.deps.Store, session.CheckoutKey(sessionID), st); err != nil {
		return fmt.Errorf("failed to save checkout state: %w", err)
	}
	return nil
}

func trimInfo(info domain.CustomerInfo) domain.CustomerInfo {
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	info.Phone = strings.TrimSpace(info.Phone)
	info.Address = strings.TrimSpace(info.Address)
	return info
}

// validateCustomer возвращает нормализованный телефон и ошибки по полям
func validateCustomer(info domain.CustomerInfo) (string, domain.ValidationErrors) {
	var verrs domain.ValidationErrors
	for _, fe := range req.FieldErrors(req.IsValid(info)) {
		switch fe.Field {
		case "name":
			verrs.Add("name", msgNameRequired)
		case "phone":
			verrs.Add("phone", msgPhoneRequired)
		case "email":
			verrs.Add("email", msgEmailInvalid)
		}
	}
	if info.Phone == "" {
		return "", verrs
	}

	normalized, err := phone.Normalize(info.Phone)
	if err != nil {
		verrs.Add("phone", msgPhoneInvalid)
		return "", verrs
	}
	return normalized, verrs
}

func withOrderToken(returnURL string, token uuid.UUID) (string, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return "", fmt.Errorf("invalid payment return url %q: %w", returnURL, err)
	}
	q := u.Query()
	q.Set("order", token.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// describe "Subscription order: <n> item(s)" и названия позиций
func describe(c cart.Cart) string {
	names := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		names = append(names, fmt.Sprintf("%s (%s)", line.ProductName, line.TierName))
	}
	return fmt.Sprintf("Subscription order: %d item(s) - %s", c.ItemCount(), strings.Join(names, ", "))
}
