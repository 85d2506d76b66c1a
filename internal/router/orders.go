package router

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/order"
)

func (h *handlers) createOrder(c *gin.Context) {
	var req struct {
		ProductSlug   string `json:"product_slug" form:"product_slug"`
		Email         string `json:"email" form:"email"`
		Notes         string `json:"notes" form:"notes"`
		PaymentMethod string `json:"payment_method" form:"payment_method"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in := order.CreateOrderInput{
		ProductSlug:   req.ProductSlug,
		Email:         req.Email,
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
	}
	if id, ok := middleware.CurrentIdentity(c); ok {
		in.UserID = id.ID
	}
	o, err := h.Orders.CreateOrder(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, o)
}

// getOrder 订单成功页：条目只在 PAID 之后展示。
func (h *handlers) getOrder(c *gin.Context) {
	ow, err := h.Orders.GetOrderWithItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if ow.Status != model.OrderPaid {
		ow.Items = []model.InventoryItem{}
	}
	ok(c, ow)
}

func (h *handlers) myOrders(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)
	list, err := h.Orders.ListOrders(c.Request.Context(), order.ListFilter{
		UserID: id.ID,
		Email:  id.Email,
		Limit:  queryLimit(c, 50),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// mockPayment 模拟支付回调，body: {"order_id": "...", "status": "PAID"}。
func (h *handlers) mockPayment(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" form:"order_id"`
		Status  string `json:"status" form:"status"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.OrderID == "" || req.Status == "" {
		badRequest(c, "order_id and status are required")
		return
	}
	h.applyStatus(c, req.OrderID, req.Status)
}

func (h *handlers) setOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" form:"status"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.applyStatus(c, c.Param("id"), req.Status)
}

func (h *handlers) applyStatus(c *gin.Context, orderID, raw string) {
	status, valid := model.ParseOrderStatus(raw)
	if !valid {
		h.fail(c, order.ErrInvalidStatus)
		return
	}
	o, err := h.Orders.SetStatus(c.Request.Context(), orderID, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"order_id": o.ID, "status": o.Status})
}

func (h *handlers) fulfillOrder(c *gin.Context) {
	ow, err := h.Orders.Fulfill(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, ow)
}

func (h *handlers) listOrders(c *gin.Context) {
	f := order.ListFilter{
		Email: c.Query("email"),
		Limit: queryLimit(c, 100),
	}
	if raw := c.Query("status"); raw != "" {
		st, valid := model.ParseOrderStatus(raw)
		if !valid {
			h.fail(c, order.ErrInvalidStatus)
			return
		}
		f.Status = st
	}
	list, err := h.Orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

func (h *handlers) listUnfulfilled(c *gin.Context) {
	list, err := h.Orders.ListUnfulfilled(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}
