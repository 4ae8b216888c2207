package routes

import (
	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/controllers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/middleware"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ratelimit"
	"github.com/ahambrahmasmi/storefront/services/common/auth"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router needs.
type Handlers struct {
	Checkout *controllers.CheckoutController
	Payments *controllers.PaymentController
	Webhooks *controllers.WebhookController
	Designs  *controllers.DesignRequestController
	Orders   *controllers.OrderController
	Limiter  *ratelimit.Limiter
	Verifier *auth.Verifier
	Metrics  *awspkg.MetricsClient
}

func RegisterCheckoutRoutes(r *gin.Engine, h Handlers) {
	r.GET("/products", h.Checkout.ListProducts)
	r.POST("/cart/totals", h.Checkout.Quote)

	r.POST("/checkout-intent", middleware.RateLimit(h.Limiter, "checkout", h.Metrics), h.Checkout.CreateIntent)
	r.POST("/verify-payment", h.Payments.VerifyPayment)
	r.POST("/design-requests", middleware.RateLimit(h.Limiter, "design", h.Metrics), h.Designs.Submit)

	// Gateways authenticate with body signatures, not bearer tokens.
	webhooks := r.Group("/webhooks")
	webhooks.POST("/razorpay", h.Webhooks.RazorpayWebhook)
	webhooks.POST("/stripe", h.Webhooks.StripeWebhook)

	admin := r.Group("/orders")
	admin.Use(middleware.RequireAdmin(h.Verifier))
	admin.GET("/:order_ref", h.Orders.GetOrder)
}
