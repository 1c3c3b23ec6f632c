package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheckHandler(c))

		setupCartRoutes(v1, c)
		setupCheckoutRoutes(v1, c)
		setupOrderRoutes(v1, c)
		setupPaymentRoutes(v1, c)
		setupReturnRoutes(v1, c)
		setupInvoiceRoutes(v1, c)
		setupWebhookRoutes(v1, c)
		setupInternalRoutes(v1, c)
		setupAdminRoutes(v1, c)
	}

	return router
}

// ========================================
// CART ROUTES
// ========================================
// Optional auth: guests carry an X-Guest-Token, logged-in users a JWT.
func setupCartRoutes(v1 *gin.RouterGroup, c *container.Container) {
	cart := v1.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(c.JWTManager))
	{
		cart.GET("", c.CartHandler.GetCart)
		cart.DELETE("", c.CartHandler.Clear)
		cart.POST("/items", c.CartHandler.AddItem)
		cart.PUT("/items/:itemId", c.CartHandler.UpdateQuantity)
		cart.DELETE("/items/:itemId", c.CartHandler.RemoveItem)
		cart.POST("/coupons", c.CartHandler.ApplyCoupon)
		cart.DELETE("/coupons/:code", c.CartHandler.RemoveCoupon)
	}
}

// ========================================
// CHECKOUT ROUTES
// ========================================
func setupCheckoutRoutes(v1 *gin.RouterGroup, c *container.Container) {
	checkout := v1.Group("/checkout")
	checkout.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		checkout.POST("", c.CheckoutHandler.Initiate)
		checkout.GET("/:sessionId", c.CheckoutHandler.GetSession)
		checkout.POST("/:sessionId/complete", c.CheckoutHandler.Complete)
	}
}

// ========================================
// ORDER ROUTES
// ========================================
func setupOrderRoutes(v1 *gin.RouterGroup, c *container.Container) {
	orders := v1.Group("/orders")
	orders.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		orders.GET("", c.OrderHandler.ListMyOrders)
		orders.GET("/:orderId", c.OrderHandler.GetOrder)
		orders.GET("/:orderId/history", c.OrderHandler.GetOrderHistory)
		orders.POST("/:orderId/cancel", c.OrderHandler.CancelOrder)

		// Payment and invoice views hang off the order they belong to
		orders.GET("/:orderId/payments", c.PaymentHandler.ListOrderPayments)
		orders.GET("/:orderId/refunds", c.PaymentHandler.ListOrderRefunds)
		orders.GET("/:orderId/invoice", c.InvoiceHandler.GetOrderInvoice)
		orders.GET("/:orderId/invoice/download", c.InvoiceHandler.DownloadInvoice)
	}
}

// ========================================
// PAYMENT + REFUND ROUTES
// ========================================
func setupPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	payments := v1.Group("/payments")
	payments.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		payments.POST("/verify", c.PaymentHandler.VerifySignature)
	}

	refunds := v1.Group("/refunds")
	refunds.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		refunds.POST("", c.PaymentHandler.RequestRefund)
		refunds.GET("/:refundId", c.PaymentHandler.GetRefund)
	}
}

// ========================================
// RETURN ROUTES
// ========================================
func setupReturnRoutes(v1 *gin.RouterGroup, c *container.Container) {
	returns := v1.Group("/returns")
	returns.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		returns.POST("", c.ReturnsHandler.CreateReturn)
		returns.GET("", c.ReturnsHandler.ListMyReturns)
		returns.GET("/:returnId", c.ReturnsHandler.GetReturn)
		returns.POST("/:returnId/cancel", c.ReturnsHandler.CancelReturn)
	}
}

// ========================================
// INVOICE ROUTES
// ========================================
func setupInvoiceRoutes(v1 *gin.RouterGroup, c *container.Container) {
	invoices := v1.Group("/invoices")
	invoices.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		invoices.GET("", c.InvoiceHandler.ListMyInvoices)
	}
}

// ========================================
// WEBHOOK ROUTES
// ========================================
// No auth, authenticity comes from the HMAC signature over the body.
func setupWebhookRoutes(v1 *gin.RouterGroup, c *container.Container) {
	v1.POST("/webhooks/payment-gateway", c.PaymentHandler.HandleWebhook)
}

// ========================================
// INTERNAL ROUTES (service-to-service)
// ========================================
func setupInternalRoutes(v1 *gin.RouterGroup, c *container.Container) {
	internal := v1.Group("/internal")
	internal.Use(middleware.InternalServiceMiddleware(c.Config.App.InternalServiceKey))
	{
		internal.POST("/cart/migrate", c.CartHandler.Migrate)
	}
}

// ========================================
// ADMIN ROUTES
// ========================================
func setupAdminRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin")
	admin.Use(middleware.AuthMiddleware(c.JWTManager), middleware.AdminMiddleware())
	{
		// Orders
		admin.GET("/orders", c.OrderHandler.AdminListOrders)
		admin.GET("/orders/:orderId", c.OrderHandler.AdminGetOrder)
		admin.PUT("/orders/:orderId/status", c.OrderHandler.AdminUpdateStatus)
		admin.POST("/orders/:orderId/ship", c.OrderHandler.AdminShipOrder)
		admin.POST("/orders/:orderId/cancel", c.OrderHandler.AdminCancelOrder)
		admin.POST("/orders/:orderId/invoice", c.InvoiceHandler.AdminGenerate)

		// Refunds
		admin.GET("/refunds", c.PaymentHandler.AdminListRefunds)
		admin.POST("/refunds/:refundId/approve", c.PaymentHandler.AdminApproveRefund)
		admin.POST("/refunds/:refundId/reject", c.PaymentHandler.AdminRejectRefund)
		admin.GET("/payments/stats", c.PaymentHandler.AdminStats)

		// Returns
		admin.GET("/returns", c.ReturnsHandler.AdminListReturns)
		admin.POST("/returns/:returnId/approve", c.ReturnsHandler.AdminApprove)
		admin.POST("/returns/:returnId/reject", c.ReturnsHandler.AdminReject)
		admin.POST("/returns/:returnId/schedule-pickup", c.ReturnsHandler.AdminSchedulePickup)
		admin.POST("/returns/:returnId/picked-up", c.ReturnsHandler.AdminMarkPickedUp)
		admin.POST("/returns/:returnId/in-transit", c.ReturnsHandler.AdminMarkInTransit)
		admin.POST("/returns/:returnId/received", c.ReturnsHandler.AdminMarkReceived)
		admin.POST("/returns/:returnId/inspect", c.ReturnsHandler.AdminInspect)
		admin.POST("/returns/:returnId/complete", c.ReturnsHandler.AdminComplete)
	}
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		status := "UP"
		code := http.StatusOK

		if err := c.DB.HealthCheck(ctx.Request.Context()); err != nil {
			status = "DOWN"
			code = http.StatusServiceUnavailable
		}

		ctx.JSON(code, gin.H{
			"status":      status,
			"service":     c.Config.App.Name,
			"version":     c.Config.App.Version,
			"environment": c.Config.App.Environment,
		})
	}
}
