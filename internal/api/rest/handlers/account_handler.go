package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AccountHandler обработчик личного кабинета клиента
type AccountHandler struct {
	service service.AccountService
	log     *logger.Logger
}

// NewAccountHandler создает новый обработчик личного кабинета
func NewAccountHandler(svc service.AccountService, log *logger.Logger) *AccountHandler {
	return &AccountHandler{service: svc, log: log}
}

// GetDashboard возвращает сводку кабинета
func (h *AccountHandler) GetDashboard(c *gin.Context) {
	dashboard, err := h.service.Dashboard(c.Request.Context(), middleware.ClaimsFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// GetSubscriptions возвращает подписки клиента
func (h *AccountHandler) GetSubscriptions(c *gin.Context) {
	subs, err := h.service.Subscriptions(c.Request.Context(), middleware.ClaimsFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Debug("Returned %d subscriptions", len(subs))
	c.JSON(http.StatusOK, subs)
}

// GetInvoices возвращает счета клиента
func (h *AccountHandler) GetInvoices(c *gin.Context) {
	invoices, err := h.service.Invoices(c.Request.Context(), middleware.ClaimsFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Debug("Returned %d invoices", len(invoices))
	c.JSON(http.StatusOK, invoices)
}

// CreateSubscriptionRequest сохраняет заявку на подписку
func (h *AccountHandler) CreateSubscriptionRequest(c *gin.Context) {
	var input domain.SubscriptionRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, h.log, err)
		return
	}

	created, err := h.service.RequestSubscription(c.Request.Context(), middleware.ClaimsFrom(c), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
