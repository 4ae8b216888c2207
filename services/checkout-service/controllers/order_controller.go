package controllers

import (
	"net/http"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	Orders services.OrderRecorder
}

func NewOrderController(orders services.OrderRecorder) *OrderController {
	return &OrderController{Orders: orders}
}

// GetOrder handles GET /orders/:order_ref for support staff.
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.Orders.Lookup(c.Request.Context(), c.Param("order_ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
