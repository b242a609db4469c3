package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// CatalogHandler обработчик каталога продуктов
type CatalogHandler struct {
	service service.CatalogService
	log     *logger.Logger
}

// NewCatalogHandler создает новый обработчик каталога
func NewCatalogHandler(svc service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, log: log}
}

// GetProducts возвращает активные продукты с тарифами
func (h *CatalogHandler) GetProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Debug("Returned %d products", len(products))
	c.JSON(http.StatusOK, products)
}
