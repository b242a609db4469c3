package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// Сообщения об ошибках для пользователя
const (
	msgInternal          = "حدث خطأ غير متوقع، يرجى المحاولة لاحقاً"
	msgBadRequest        = "صيغة الطلب غير صحيحة"
	msgValidation        = "بيانات الطلب غير صالحة"
	msgNotFound          = "العنصر المطلوب غير موجود"
	msgDuplicate         = "السجل موجود مسبقاً"
	msgCartEmpty         = "السلة فارغة"
	msgIllegalStep       = "لا يمكن الانتقال إلى هذه الخطوة"
	msgCustomerRequired  = "يرجى إدخال بيانات العميل أولاً"
	msgNoPendingOrder    = "لا يوجد طلب بانتظار الإتمام"
	msgPaymentFailed     = "لم يتم تأكيد الدفع"
	msgExternalService   = "الخدمة الخارجية غير متاحة حالياً، يرجى المحاولة مرة أخرى"
	msgUnauthenticated   = "يجب تسجيل الدخول"
	msgPartiallyComplete = "تم تفعيل بعض الاشتراكات فقط، يرجى إعادة المحاولة لإكمال الطلب"
	msgOrderComplete     = "تم تفعيل جميع الاشتراكات بنجاح"
)

// writeError переводит ошибку сервиса в HTTP-ответ
func writeError(c *gin.Context, log *logger.Logger, err error) {
	status, body := errorResponse(err)
	fields := []any{"path", c.Request.URL.Path, "status", status, "error", err}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		log.Errorw("Request failed", fields...)
	} else {
		log.Warnw("Request rejected", fields...)
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

func errorResponse(err error) (int, res.ErrorResponse) {
	var (
		verrs    domain.ValidationErrors
		external *domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, res.ErrorResponse{Error: msgValidation, ErrorCode: http.StatusUnprocessableEntity, Details: verrs}
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusBadRequest, res.ErrorResponse{Error: msgCartEmpty, ErrorCode: http.StatusBadRequest}
	case errors.Is(err, domain.ErrPendingOrderNotFound):
		return http.StatusNotFound, res.ErrorResponse{Error: msgNoPendingOrder, ErrorCode: http.StatusNotFound}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, res.ErrorResponse{Error: msgNotFound, ErrorCode: http.StatusNotFound}
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict, res.ErrorResponse{Error: msgDuplicate, ErrorCode: http.StatusConflict}
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, res.ErrorResponse{Error: msgIllegalStep, ErrorCode: http.StatusConflict}
	case errors.Is(err, domain.ErrCustomerRequired):
		return http.StatusConflict, res.ErrorResponse{Error: msgCustomerRequired, ErrorCode: http.StatusConflict}
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired, res.ErrorResponse{Error: msgPaymentFailed, ErrorCode: http.StatusPaymentRequired}
	case errors.As(err, &external):
		return http.StatusBadGateway, res.ErrorResponse{Error: msgExternalService, ErrorCode: http.StatusBadGateway, Retryable: external.Retryable()}
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, res.ErrorResponse{Error: msgUnauthenticated, ErrorCode: http.StatusUnauthorized}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, res.ErrorResponse{Error: msgBadRequest, ErrorCode: http.StatusBadRequest}
	default:
		return http.StatusInternalServerError, res.ErrorResponse{Error: msgInternal, ErrorCode: http.StatusInternalServerError}
	}
}

func badRequest(c *gin.Context, log *logger.Logger, err error) {
	log.Warnw("Invalid request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: msgBadRequest, ErrorCode: http.StatusBadRequest})
}

func sessionID(c *gin.Context) string {
	return c.GetString(middleware.ContextSessionIDKey)
}
