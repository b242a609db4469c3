package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse(t *testing.T) {
	var verrs domain.ValidationErrors
	verrs.Add("phone", "رقم الجوال مطلوب")

	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"validation", fmt.Errorf("wrapped: %w", verrs), http.StatusUnprocessableEntity, false},
		{"cart empty", domain.ErrCartEmpty, http.StatusBadRequest, false},
		{"no pending order", domain.ErrPendingOrderNotFound, http.StatusNotFound, false},
		{"not found", domain.NewNotFoundError("customer", "1"), http.StatusNotFound, false},
		{"duplicate", domain.NewDuplicateError("customer", "email", "a@b.c"), http.StatusConflict, false},
		{"illegal step", domain.ErrIllegalTransition, http.StatusConflict, false},
		{"customer required", domain.ErrCustomerRequired, http.StatusConflict, false},
		{"payment failed", fmt.Errorf("%w: declined", domain.ErrPaymentFailed), http.StatusPaymentRequired, false},
		{"provider 503", domain.NewExternalServiceError("paypal", "create_order", "down", 503, nil), http.StatusBadGateway, true},
		{"provider 400", domain.NewExternalServiceError("paypal", "create_order", "bad", 400, nil), http.StatusBadGateway, false},
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, false},
		{"invalid input", fmt.Errorf("%w: qty", domain.ErrInvalidInput), http.StatusBadRequest, false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.status, body.ErrorCode)
			assert.Equal(t, tt.retryable, body.Retryable)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPageParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	parse := func(query string) (int, int, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
		p, err := pageParams(c)
		return p.Limit, p.Offset, err
	}

	limit, offset, err := parse("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Zero(t, offset)

	limit, offset, err = parse("limit=250&offset=20")
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, limit)
	assert.Equal(t, 20, offset)

	for _, q := range []string{"limit=0", "limit=abc", "offset=-5"} {
		_, _, err = parse(q)
		assert.ErrorIs(t, err, errInvalidQuery, q)
	}
}

func TestDateRange(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?from=2026-05-01&to=2026-05-31", nil)

	rng, err := dateRange(c)
	require.NoError(t, err)
	require.NotNil(t, rng.From)
	require.NotNil(t, rng.To)
	assert.Equal(t, "2026-05-01", rng.From.Format("2006-01-02"))
	assert.Equal(t, "2026-05-31", rng.To.Format("2006-01-02"))
	assert.True(t, rng.Contains(time.Date(2026, 5, 31, 18, 0, 0, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
}
