package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// Пагинация внешнего API
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

var errInvalidQuery = errors.New("invalid query parameter")

// PublicHandler внешний REST API только для чтения
type PublicHandler struct {
	reports repository.ReportingRepository
	log     *logger.Logger
}

// NewPublicHandler создает обработчик внешнего API
func NewPublicHandler(reports repository.ReportingRepository, log *logger.Logger) *PublicHandler {
	return &PublicHandler{reports: reports, log: log}
}

// ListCustomers клиенты; status=subscribed|not_subscribed
func (h *PublicHandler) ListCustomers(c *gin.Context) {
	page, err := pageParams(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}

	filter := repository.CustomerFilter{Page: page}
	switch status := c.Query("status"); status {
	case "":
	case "subscribed", "not_subscribed":
		subscribed := status == "subscribed"
		filter.Subscribed = &subscribed
	default:
		h.invalidQuery(c, fmt.Errorf("%w: status %q", errInvalidQuery, status))
		return
	}

	items, total, err := h.reports.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		h.failed(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Page[domain.Customer]{Data: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// ListSubscriptions подписки; status=active|expired|cancelled, from/to по дате начала
func (h *PublicHandler) ListSubscriptions(c *gin.Context) {
	page, err := pageParams(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}
	rng, err := dateRange(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}
	status := domain.SubscriptionStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		h.invalidQuery(c, fmt.Errorf("%w: status %q", errInvalidQuery, status))
		return
	}

	items, total, err := h.reports.ListSubscriptions(c.Request.Context(), repository.SubscriptionFilter{Status: status, Range: rng, Page: page})
	if err != nil {
		h.failed(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Page[domain.Subscription]{Data: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// ListInvoices счета; status=paid|pending|overdue, from/to по дате выставления
func (h *PublicHandler) ListInvoices(c *gin.Context) {
	page, err := pageParams(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}
	rng, err := dateRange(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}
	status := domain.InvoiceStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		h.invalidQuery(c, fmt.Errorf("%w: status %q", errInvalidQuery, status))
		return
	}

	items, total, err := h.reports.ListInvoices(c.Request.Context(), repository.InvoiceFilter{Status: status, Range: rng, Page: page})
	if err != nil {
		h.failed(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Page[domain.Invoice]{Data: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// ListProducts все продукты с тарифами
func (h *PublicHandler) ListProducts(c *gin.Context) {
	page, err := pageParams(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}

	items, total, err := h.reports.ListProducts(c.Request.Context(), page)
	if err != nil {
		h.failed(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Page[domain.Product]{Data: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// GetAnalytics сводка за период from/to
func (h *PublicHandler) GetAnalytics(c *gin.Context) {
	rng, err := dateRange(c)
	if err != nil {
		h.invalidQuery(c, err)
		return
	}

	analytics, err := h.reports.Analytics(c.Request.Context(), rng)
	if err != nil {
		h.failed(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *PublicHandler) invalidQuery(c *gin.Context, err error) {
	h.log.Warnw("Invalid public API query", "path", c.Request.URL.Path, "query", c.Request.URL.RawQuery, "error", err)
	c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: err.Error(), ErrorCode: http.StatusBadRequest})
}

func (h *PublicHandler) failed(c *gin.Context, err error) {
	h.log.Errorw("Public API query failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "internal error", ErrorCode: http.StatusInternalServerError})
}

// pageParams limit по умолчанию 50, не больше 100
func pageParams(c *gin.Context) (repository.Page, error) {
	page := repository.Page{Limit: DefaultPageLimit}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return page, fmt.Errorf("%w: limit %q", errInvalidQuery, raw)
		}
		page.Limit = min(limit, MaxPageLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page, fmt.Errorf("%w: offset %q", errInvalidQuery, raw)
		}
		page.Offset = offset
	}
	return page, nil
}

// dateRange разбирает from/to в формате YYYY-MM-DD; to включается целиком
func dateRange(c *gin.Context) (repository.DateRange, error) {
	var rng repository.DateRange
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return rng, fmt.Errorf("%w: from %q", errInvalidQuery, raw)
		}
		rng.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return rng, fmt.Errorf("%w: to %q", errInvalidQuery, raw)
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		rng.To = &end
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return rng, fmt.Errorf("%w: to is before from", errInvalidQuery)
	}
	return rng, nil
}
