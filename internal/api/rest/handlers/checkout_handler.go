package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-commerce/internal/cart"
	"github.com/Dhoini/subscription-commerce/internal/checkout"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/fulfillment"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// CheckoutHandler обработчик шагов оформления заказа и возврата с оплаты
type CheckoutHandler struct {
	checkout    *checkout.Service
	fulfillment *fulfillment.Service
	carts       *cart.Service
	store       session.Store
	log         *logger.Logger
}

// NewCheckoutHandler создает новый обработчик оформления заказа
func NewCheckoutHandler(co *checkout.Service, ff *fulfillment.Service, carts *cart.Service, store session.Store, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:    co,
		fulfillment: ff,
		carts:       carts,
		store:       store,
		log:         log,
	}
}

// Start начинает оформление с шага review
func (h *CheckoutHandler) Start(c *gin.Context) {
	h.respond(c)(h.checkout.Start(c.Request.Context(), sessionID(c)))
}

// GetState возвращает текущий шаг оформления
func (h *CheckoutHandler) GetState(c *gin.Context) {
	h.respond(c)(h.checkout.State(c.Request.Context(), sessionID(c)))
}

// Next переходит с review на customer
func (h *CheckoutHandler) Next(c *gin.Context) {
	h.respond(c)(h.checkout.Next(c.Request.Context(), sessionID(c)))
}

// Previous возвращает на предыдущий шаг
func (h *CheckoutHandler) Previous(c *gin.Context) {
	h.respond(c)(h.checkout.Previous(c.Request.Context(), sessionID(c)))
}

// SubmitCustomer сохраняет данные клиента
func (h *CheckoutHandler) SubmitCustomer(c *gin.Context) {
	var info domain.CustomerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.respond(c)(h.checkout.SubmitCustomer(c.Request.Context(), sessionID(c), middleware.ClaimsFrom(c), info))
}

// SubmitPayment создает заказ и возвращает ссылку на оплату.
// При ошибке провайдера клиент получает состояние с LastError и может повторить.
func (h *CheckoutHandler) SubmitPayment(c *gin.Context) {
	st, err := h.checkout.SubmitPayment(c.Request.Context(), sessionID(c))
	var external *domain.ExternalServiceError
	if errors.As(err, &external) {
		h.log.Warnw("Payment link request failed", "session", sessionID(c), "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, res.ErrorResponse{
			Error:     st.LastError,
			ErrorCode: http.StatusBadGateway,
			Retryable: true,
			Details:   st,
		})
		return
	}
	h.respond(c)(st, err)
}

type returnResponse struct {
	fulfillment.Result
	Message string `json:"message"`
}

// Return выполняет заказ после возврата покупателя с оплаты.
// Заказ определяется только токеном из URL, сессия берется из заказа.
// Корзина и токен заказа сессии очищаются при любом исходе.
func (h *CheckoutHandler) Return(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.fulfillment.Fulfill(ctx, c.Query("order"), c.Query("token"))
	h.cleanup(ctx, result.SessionID)

	if err != nil {
		writeError(c, h.log, err)
		return
	}

	message := msgOrderComplete
	if !result.Complete() {
		message = msgPartiallyComplete
	}
	c.JSON(http.StatusOK, returnResponse{Result: result, Message: message})
}

func (h *CheckoutHandler) cleanup(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	if err := h.carts.Clear(ctx, sid); err != nil {
		h.log.Warnw("Failed to clear cart after payment return", "session", sid, "error", err)
	}
	if err := h.store.Delete(ctx, session.PendingOrderKey(sid)); err != nil {
		h.log.Warnw("Failed to clear pending order token", "session", sid, "error", err)
	}
	if err := h.checkout.Reset(ctx, sid); err != nil {
		h.log.Warnw("Failed to reset checkout", "session", sid, "error", err)
	}
}

func (h *CheckoutHandler) respond(c *gin.Context) func(checkout.State, error) {
	return func(st checkout.State, err error) {
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
