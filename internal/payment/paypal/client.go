// Package paypal клиент PayPal Orders API v2 с OAuth2 client credentials.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	serviceName    = "paypal"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config параметры доступа к PayPal REST API
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}

// Client реализует payment.LinkGenerator и payment.Capturer
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *logger.Logger
}

// NewClient создает клиент. Токен доступа кешируется до истечения.
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	httpClient := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, transport))
	httpClient.Timeout = timeout

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx ответы провайдера не говорят о его недоступности
		IsSuccessful: func(err error) bool {
			var ext *domain.ExternalServiceError
			if errors.As(err, &ext) {
				return !ext.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		breaker: breaker,
		log:     log,
	}
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Description string `json:"description,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      amount `json:"amount"`
}

type applicationContext struct {
	ShippingPreference string `json:"shipping_preference"`
	UserAction         string `json:"user_action"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type linkDescription struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type orderResponse struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Links  []linkDescription `json:"links"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// descriptionLimit ограничение PayPal на purchase_units[].description
const descriptionLimit = 127

// CreatePaymentLink создает заказ с intent CAPTURE без доставки и возвращает ссылку approve
func (c *Client) CreatePaymentLink(ctx context.Context, req payment.LinkRequest) (payment.Link, error) {
	desc := req.Description
	if r := []rune(desc); len(r) > descriptionLimit {
		desc = string(r[:descriptionLimit])
	}

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: req.ReferenceID,
			Description: desc,
			CustomID:    req.ReferenceID,
			Amount: amount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        req.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: applicationContext{
			ShippingPreference: "NO_SHIPPING",
			UserAction:         "PAY_NOW",
			ReturnURL:          req.ReturnURL,
			CancelURL:          req.CancelURL,
		},
	}

	data, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, "create_order")
	if err != nil {
		c.log.Errorw("PayPal order creation failed", "reference", req.ReferenceID, "error", err)
		return payment.Link{}, err
	}

	var order orderResponse
	if err := json.Unmarshal(data, &order); err != nil {
		return payment.Link{}, domain.NewExternalServiceError(serviceName, "decode", "invalid order response", http.StatusBadGateway, err)
	}

	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			c.log.Infow("PayPal order created", "reference", req.ReferenceID, "orderID", order.ID, "status", order.Status)
			return payment.Link{URL: l.Href, ProviderOrderID: order.ID}, nil
		}
	}
	return payment.Link{}, domain.NewExternalServiceError(serviceName, "no_approval_link", "order has no approval link", http.StatusBadGateway, nil)
}

// CaptureOrder списывает средства по одобренному заказу.
// Повторный capture уже списанного заказа не считается ошибкой.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) error {
	if providerOrderID == "" {
		return fmt.Errorf("%w: empty provider order id", domain.ErrInvalidInput)
	}

	_, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(providerOrderID)+"/capture", struct{}{}, "capture_order")
	if err != nil {
		var ext *domain.ExternalServiceError
		if errors.As(err, &ext) && ext.Code == "ORDER_ALREADY_CAPTURED" {
			c.log.Infow("PayPal order already captured", "orderID", providerOrderID)
			return nil
		}
		c.log.Errorw("PayPal capture failed", "orderID", providerOrderID, "error", err)
		return err
	}

	c.log.Infow("PayPal order captured", "orderID", providerOrderID)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, op string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", op, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				status := 0
				if retrieveErr.Response != nil {
					status = retrieveErr.Response.StatusCode
				}
				return nil, domain.NewExternalServiceError(serviceName, "oauth_token", "failed to obtain access token", status, err)
			}
			return nil, domain.NewExternalServiceError(serviceName, op, "request failed", 0, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, domain.NewExternalServiceError(serviceName, op, "failed to read response", 0, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, responseError(op, resp.StatusCode, data)
		}
		return data, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.NewExternalServiceError(serviceName, op, "provider temporarily unavailable", http.StatusServiceUnavailable, err)
	}
	return data, err
}

func responseError(op string, status int, data []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(data, &apiErr)

	code := apiErr.Name
	if len(apiErr.Details) > 0 && apiErr.Details[0].Issue != "" {
		code = apiErr.Details[0].Issue
	}
	if code == "" {
		code = op + "_http_" + strconv.Itoa(status)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	if apiErr.DebugID != "" {
		msg += " (debug_id " + apiErr.DebugID + ")"
	}
	return domain.NewExternalServiceError(serviceName, code, msg, status, nil)
}
