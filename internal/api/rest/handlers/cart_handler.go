package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/cart"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartHandler обработчик корзины сессии
type CartHandler struct {
	carts *cart.Service
	log   *logger.Logger
}

// NewCartHandler создает новый обработчик корзины
func NewCartHandler(carts *cart.Service, log *logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

type cartResponse struct {
	Lines     []domain.CartLine `json:"lines"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

func newCartResponse(c cart.Cart) cartResponse {
	return cartResponse{Lines: c.Snapshot(), Total: c.Total(), ItemCount: c.ItemCount()}
}

type addItemRequest struct {
	ProductID     uuid.UUID `json:"product_id"`
	PricingTierID uuid.UUID `json:"pricing_tier_id"`
	Quantity      int       `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart возвращает корзину
func (h *CartHandler) GetCart(c *gin.Context) {
	current, err := h.carts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(current))
}

// AddItem добавляет тариф в корзину
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	updated, err := h.carts.AddToCart(c.Request.Context(), sessionID(c), req.ProductID, req.PricingTierID, req.Quantity)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Infow("Item added to cart", "session", sessionID(c), "tierID", req.PricingTierID, "quantity", req.Quantity)
	c.JSON(http.StatusOK, newCartResponse(updated))
}

// UpdateItem меняет количество позиции; 0 удаляет ее
func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, tierID, ok := h.lineParams(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}

	updated, err := h.carts.UpdateQuantity(c.Request.Context(), sessionID(c), productID, tierID, req.Quantity)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(updated))
}

// RemoveItem удаляет позицию
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, tierID, ok := h.lineParams(c)
	if !ok {
		return
	}

	updated, err := h.carts.RemoveFromCart(c.Request.Context(), sessionID(c), productID, tierID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(updated))
}

// ClearCart очищает корзину
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), sessionID(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart.Cart{}))
}

func (h *CartHandler) lineParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	productID, err := uuid.Parse(c.Param("productID"))
	if err != nil {
		badRequest(c, h.log, err)
		return uuid.Nil, uuid.Nil, false
	}
	tierID, err := uuid.Parse(c.Param("tierID"))
	if err != nil {
		badRequest(c, h.log, err)
		return uuid.Nil, uuid.Nil, false
	}
	return productID, tierID, true
}
