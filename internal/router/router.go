package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/inventory"
	"storefront/internal/middleware"
	"storefront/internal/observability"
	"storefront/internal/order"
)

// Deps 路由依赖，由 main 组装后注入。
type Deps struct {
	Catalog   *catalog.Registry
	Inventory *inventory.Store
	Orders    *order.Service
	Redis     *rd.Client // 可为 nil
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
	Config    config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	h := &handlers{Deps: d}

	r.Use(middleware.Identity(d.Config.AuthSecret, d.Logger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/products", h.listProducts)
	api.GET("/products/featured", h.listFeatured)
	api.GET("/products/:slug", h.getProduct)

	api.POST("/orders",
		middleware.CheckoutRateLimit(d.Redis, d.Config.CheckoutRateLimit, d.Config.CheckoutRateWindow, d.Logger),
		h.createOrder)
	api.GET("/orders/:id", h.getOrder)
	api.GET("/account/orders", middleware.RequireAuth(), h.myOrders)
	api.POST("/payment/mock", middleware.RequireAdmin(), h.mockPayment)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.POST("/products", h.createProduct)
	admin.PATCH("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)

	admin.GET("/items", h.listItems)
	admin.POST("/items", h.createItem)
	admin.POST("/items/bulk", h.bulkImport)
	admin.POST("/items/claim", h.claimItem)
	admin.PATCH("/items/:id", h.updateItem)
	admin.POST("/items/:id/used", h.setItemUsed)
	admin.DELETE("/items/:id", h.deleteItem)

	admin.GET("/orders", h.listOrders)
	admin.GET("/orders/unfulfilled", h.listUnfulfilled)
	admin.POST("/orders/:id/status", h.setOrderStatus)
	admin.POST("/orders/:id/fulfill", h.fulfillOrder)
}

type handlers struct {
	Deps
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": msg})
}

// fail 按错误分类返回；500 不暴露内部错误信息。
func (h *handlers) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.FromContext(c.Request.Context(), h.Logger).Error("request_failed", zap.Error(err))
		msg = "internal error"
		if errors.Is(err, inventory.ErrClaimContention) {
			status = http.StatusServiceUnavailable
			msg = "inventory busy, please retry"
		}
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"code": status, "msg": msg})
}

// paramID 解析 32 bit 十进制路径参数。
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryLimit(c *gin.Context, fallback int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 500 {
		return 500
	}
	return n
}
