package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	tokenStatus  int
	orderStatus  int
	tokenCalls   atomic.Int32
	orderCalls   atomic.Int32
	lastOrder    createOrderRequest
	captureReply func(w http.ResponseWriter)
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		f.orderCalls.Add(1)
		assert.Equal(t, "Bearer A21AA", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastOrder))

		w.Header().Set("Content-Type", "application/json")
		if f.orderStatus != 0 {
			w.WriteHeader(f.orderStatus)
			_, _ = w.Write([]byte(`{"name":"INVALID_REQUEST","message":"Request is not well-formed","debug_id":"abc123"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[
			{"href":"https://api.sandbox.paypal.com/v2/checkout/orders/5O190127TN364715T","rel":"self","method":"GET"},
			{"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve","method":"GET"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if f.captureReply != nil {
			f.captureReply(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"COMPLETED"}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakePayPal) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{ClientID: "client-id", ClientSecret: "client-secret", BaseURL: srv.URL}, logger.NewNop())
}

func linkRequest() payment.LinkRequest {
	return payment.LinkRequest{
		Amount:      decimal.RequireFromString("27"),
		Currency:    "usd",
		Description: "Subscription order: 2 item(s)",
		ReferenceID: "ORD-1700000000000",
		ReturnURL:   "https://shop.example/return?order=t",
		CancelURL:   "https://shop.example/checkout",
	}
}

func TestCreatePaymentLink(t *testing.T) {
	f := &fakePayPal{}
	c := newTestClient(t, f)

	link, err := c.CreatePaymentLink(context.Background(), linkRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", link.URL)
	assert.Equal(t, "5O190127TN364715T", link.ProviderOrderID)

	assert.Equal(t, "CAPTURE", f.lastOrder.Intent)
	assert.Equal(t, "NO_SHIPPING", f.lastOrder.ApplicationContext.ShippingPreference)
	require.Len(t, f.lastOrder.PurchaseUnits, 1)
	assert.Equal(t, "ORD-1700000000000", f.lastOrder.PurchaseUnits[0].ReferenceID)
	assert.Equal(t, amount{CurrencyCode: "USD", Value: "27.00"}, f.lastOrder.PurchaseUnits[0].Amount)
	assert.Equal(t, "https://shop.example/return?order=t", f.lastOrder.ApplicationContext.ReturnURL)

	// токен переиспользуется
	_, err = c.CreatePaymentLink(context.Background(), linkRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestCreatePaymentLink_TokenFailure(t *testing.T) {
	f := &fakePayPal{tokenStatus: http.StatusUnauthorized}
	c := newTestClient(t, f)

	_, err := c.CreatePaymentLink(context.Background(), linkRequest())
	require.Error(t, err)

	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "oauth_token", ext.Code)
	assert.Equal(t, http.StatusUnauthorized, ext.StatusCode)
	assert.Equal(t, int32(0), f.orderCalls.Load())
}

func TestCreatePaymentLink_OrderFailure(t *testing.T) {
	f := &fakePayPal{orderStatus: http.StatusBadRequest}
	c := newTestClient(t, f)

	_, err := c.CreatePaymentLink(context.Background(), linkRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)

	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "INVALID_REQUEST", ext.Code)
	assert.Contains(t, ext.Message, "abc123")
	assert.False(t, ext.Retryable())
}

func TestCreatePaymentLink_BreakerOpensOnServerErrors(t *testing.T) {
	f := &fakePayPal{orderStatus: http.StatusInternalServerError}
	c := newTestClient(t, f)

	for i := 0; i < 5; i++ {
		_, err := c.CreatePaymentLink(context.Background(), linkRequest())
		require.Error(t, err)
	}
	calls := f.orderCalls.Load()

	_, err := c.CreatePaymentLink(context.Background(), linkRequest())
	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusServiceUnavailable, ext.StatusCode)
	assert.Equal(t, calls, f.orderCalls.Load())
}

func TestCaptureOrder(t *testing.T) {
	f := &fakePayPal{}
	c := newTestClient(t, f)
	require.NoError(t, c.CaptureOrder(context.Background(), "5O190127TN364715T"))

	f.captureReply = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`))
	}
	require.NoError(t, c.CaptureOrder(context.Background(), "5O190127TN364715T"))

	f.captureReply = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
	}
	err := c.CaptureOrder(context.Background(), "5O190127TN364715T")
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)

	assert.ErrorIs(t, c.CaptureOrder(context.Background(), ""), domain.ErrInvalidInput)
}

func TestCaptureOrder_EscapesOrderID(t *testing.T) {
	var capturePath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/oauth2/token" {
			_, _ = w.Write([]byte(`{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`))
			return
		}
		capturePath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{ClientID: "client-id", ClientSecret: "client-secret", BaseURL: srv.URL}, logger.NewNop())
	require.NoError(t, c.CaptureOrder(context.Background(), "PP-1/../refund"))
	assert.Equal(t, "/v2/checkout/orders/PP-1%2F..%2Frefund/capture", capturePath)
}
