// Package stripe генератор ссылок на оплату через Stripe Checkout Sessions.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	serviceName = "stripe"
	// sessionIDPlaceholder Stripe подставляет ID сессии в success_url
	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
	metadataReferenceKey = "reference_id"
)

// Client реализует payment.LinkGenerator и payment.Capturer
type Client struct {
	api *client.API
	log *logger.Logger
}

// NewClient создает клиент Stripe. backends == nil означает боевые адреса API.
func NewClient(apiKey string, backends *stripe.Backends, log *logger.Logger) *Client {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &Client{api: sc, log: log}
}

// CreatePaymentLink создает Checkout Session в режиме payment на всю сумму заказа
func (c *Client) CreatePaymentLink(ctx context.Context, req payment.LinkRequest) (payment.Link, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSessionID(req.ReturnURL)),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
	}
	params.AddMetadata(metadataReferenceKey, req.ReferenceID)
	params.Context = ctx
	params.SetIdempotencyKey(req.ReferenceID)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(c.log, "CreateCheckoutSession", err)
		return payment.Link{}, wrapError("create_session", err)
	}

	c.log.Infow("Stripe checkout session created", "reference", req.ReferenceID, "sessionID", sess.ID)
	return payment.Link{URL: sess.URL, ProviderOrderID: sess.ID}, nil
}

// CaptureOrder проверяет, что сессия оплачена. Списание в режиме payment
// выполняет сам Stripe, поэтому здесь только подтверждение статуса.
func (c *Client) CaptureOrder(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty checkout session id", domain.ErrInvalidInput)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		logStripeError(c.log, "GetCheckoutSession", err)
		return wrapError("get_session", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		c.log.Warnw("Stripe checkout session is not paid", "sessionID", sessionID, "paymentStatus", sess.PaymentStatus)
		return fmt.Errorf("%w: checkout session %s payment status %s", domain.ErrPaymentFailed, sessionID, sess.PaymentStatus)
	}
	return nil
}

func withSessionID(returnURL string) string {
	sep := "?"
	if strings.Contains(returnURL, "?") {
		sep = "&"
	}
	return returnURL + sep + "token=" + sessionIDPlaceholder
}

var hundred = decimal.NewFromInt(100)

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func wrapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return domain.NewExternalServiceError(serviceName, string(stripeErr.Code), stripeErr.Msg, stripeErr.HTTPStatusCode, err)
	}
	return domain.NewExternalServiceError(serviceName, op, "request failed", 0, err)
}

// logStripeError логирует детали ошибки Stripe
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
		return
	}
	log.Errorw("Non-Stripe error during Stripe operation", "operation", operation, "error", err)
}
