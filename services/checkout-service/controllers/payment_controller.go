package controllers

import (
	"net/http"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	Payments services.PaymentService
}

func NewPaymentController(payments services.PaymentService) *PaymentController {
	return &PaymentController{Payments: payments}
}

// VerifyPayment handles POST /verify-payment. Failures keep the
// {success:false, message} shape the checkout page expects.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verifyFailure(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid request body", err))
		return
	}

	resp, err := pc.Payments.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		logFailure(c, "Payment verification failed", err,
			zap.String("intent_id", req.IntentID),
			zap.String("payment_ref", req.PaymentRef),
			zap.String("error_kind", string(apperrors.KindOf(err))))
		verifyFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func verifyFailure(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := apperrors.Response(err)
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": body["error"],
		"kind":    body["kind"],
	})
}
