package handlers

import (
	"net/http"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/notification"
	"github.com/Dhoini/subscription-commerce/internal/provisioning"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// FunctionsHandler служебные задачи: создание учетных записей и уведомления
type FunctionsHandler struct {
	provisioning *provisioning.Service
	notifier     *notification.ExpiryNotifier
	now          func() time.Time
	log          *logger.Logger
}

// NewFunctionsHandler создает обработчик служебных задач
func NewFunctionsHandler(p *provisioning.Service, n *notification.ExpiryNotifier, log *logger.Logger) *FunctionsHandler {
	return &FunctionsHandler{provisioning: p, notifier: n, now: time.Now, log: log}
}

type provisionRequest struct {
	Customers []provisioning.Request `json:"customers"`
}

type provisionResponse struct {
	Results []provisioning.Result `json:"results"`
}

// ProvisionAccounts создает учетные записи для пачки клиентов
func (h *FunctionsHandler) ProvisionAccounts(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}

	results, err := h.provisioning.ProvisionAccounts(c.Request.Context(), req.Customers)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, provisionResponse{Results: results})
}

// NotifyExpiring рассылает уведомления об истечении подписок.
// Необязательный параметр date (YYYY-MM-DD) задает текущий день.
func (h *FunctionsHandler) NotifyExpiring(c *gin.Context) {
	today := h.now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			badRequest(c, h.log, err)
			return
		}
		today = parsed
	}

	summary, err := h.notifier.Run(c.Request.Context(), today)
	if err != nil {
		h.log.Errorw("Expiry notification run failed", "error", err)
		c.JSON(http.StatusInternalServerError, summary)
		return
	}
	c.JSON(http.StatusOK, summary)
}
