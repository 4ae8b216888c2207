package controllers

import (
	"net/http"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/catalog"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Checkout services.CheckoutService
	Catalog  *catalog.Catalog
}

func NewCheckoutController(checkout services.CheckoutService, cat *catalog.Catalog) *CheckoutController {
	return &CheckoutController{Checkout: checkout, Catalog: cat}
}

// ListProducts handles GET /products.
func (cc *CheckoutController) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": cc.Catalog.All()})
}

// Quote handles POST /cart/totals. Display only; checkout recomputes.
func (cc *CheckoutController) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.EmptyCart())
		return
	}
	quote, err := cc.Checkout.Quote(req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreateIntent handles POST /checkout-intent.
func (cc *CheckoutController) CreateIntent(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid request body", err))
		return
	}

	resp, err := cc.Checkout.CreateIntent(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		logFailure(c, "Checkout intent failed", err, zap.String("error_kind", string(apperrors.KindOf(err))))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
