package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"rental/internal/handler"
	"rental/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler       *handler.RideHandler
	PaymentHandler    *handler.PaymentHandler
	PricingHandler    *handler.PricingHandler
	MonitoringHandler *handler.MonitoringHandler
	WebhookHandler    *handler.WebhookHandler

	Authenticator  middleware.PlatformAuthenticator
	InternalAPIKey string

	RedisClient redis.UniversalClient
	NewRelicApp *newrelic.Application
	Logger      logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
//
//	/v1        platform access key, one permission per route
//	/internal  internal API key, every platform visible
//	/webhook   internal API key, device control events
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicErrors())
	}
	router.Use(middleware.RequestLogger(deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	idempotent := middleware.Idempotency(deps.RedisClient, deps.Logger)
	perm := middleware.RequirePermission

	rides := deps.RideHandler
	payments := deps.PaymentHandler

	v1 := router.Group("/v1", middleware.PlatformAuth(deps.Authenticator, deps.Logger), idempotent)
	{
		v1.POST("/rides/pricing", perm("rides.pricing"), deps.PricingHandler.GetPricing)

		platform := v1.Group("/rides")
		platform.GET("", perm("rides.list"), rides.ListRides)
		platform.POST("", perm("rides.start"), rides.StartRide)
		platform.GET("/:rideId", perm("rides.view"), rides.GetRide)
		platform.DELETE("/:rideId", perm("rides.terminate"), rides.TerminateRide)
		platform.POST("/:rideId/discount", perm("rides.discount"), rides.ChangeDiscount)
		platform.POST("/:rideId/photo", perm("rides.photo"), rides.UploadPhoto)
		platform.GET("/:rideId/status", perm("rides.status"), rides.GetStatus)
		platform.GET("/:rideId/pricing", perm("rides.pricing"), rides.GetPricing)
		platform.GET("/:rideId/timeline", perm("rides.timeline"), rides.GetTimeline)
		platform.GET("/:rideId/lights/:state", perm("rides.lights"), rides.SetLights)
		platform.GET("/:rideId/lock/:state", perm("rides.lock"), rides.SetLock)
		platform.PUT("/:rideId/maxSpeed", perm("rides.maxSpeed"), rides.SetMaxSpeed)

		platform.GET("/:rideId/payments", perm("rides.payments.list"), payments.ListRidePayments)
		platform.POST("/:rideId/payments", perm("rides.payments.create"), payments.AddPayment)
		platform.DELETE("/:rideId/payments", perm("rides.payments.refund"), payments.RefundAllPayment)
		platform.GET("/:rideId/payments/:paymentId", perm("rides.payments.view"), payments.GetPayment)
		platform.GET("/:rideId/payments/:paymentId/process", perm("rides.payments.process"), payments.SetProcessed)
		platform.DELETE("/:rideId/payments/:paymentId", perm("rides.payments.refund"), payments.RefundPayment)
	}

	internal := router.Group("/internal", middleware.InternalAuth(deps.InternalAPIKey), idempotent)
	{
		internal.POST("/rides/pricing", deps.PricingHandler.GetPricing)
		internal.GET("/payments", payments.ListPayments)

		admin := internal.Group("/rides")
		admin.GET("", rides.ListRides)
		admin.POST("", rides.StartRide)
		admin.GET("/:rideId", rides.GetRide)
		admin.DELETE("/:rideId", rides.TerminateRide)
		admin.POST("/:rideId/discount", rides.ChangeDiscount)
		admin.POST("/:rideId/photo", rides.UploadPhoto)
		admin.GET("/:rideId/status", rides.GetStatus)
		admin.GET("/:rideId/pricing", rides.GetPricing)
		admin.GET("/:rideId/timeline", rides.GetTimeline)
		admin.GET("/:rideId/lights/:state", rides.SetLights)
		admin.GET("/:rideId/lock/:state", rides.SetLock)
		admin.PUT("/:rideId/maxSpeed", rides.SetMaxSpeed)
		admin.DELETE("/:rideId/insurance", rides.CancelInsurance)

		admin.GET("/:rideId/payments", payments.ListRidePayments)
		admin.POST("/:rideId/payments", payments.AddPayment)
		admin.DELETE("/:rideId/payments", payments.RefundAllPayment)
		admin.GET("/:rideId/payments/:paymentId", payments.GetPayment)
		admin.GET("/:rideId/payments/:paymentId/process", payments.SetProcessed)
		admin.DELETE("/:rideId/payments/:paymentId", payments.RefundPayment)

		admin.GET("/:rideId/monitoring", deps.MonitoringHandler.ListLogs)
		admin.POST("/:rideId/monitoring", deps.MonitoringHandler.SetMonitoringStatus)
	}

	webhook := router.Group("/webhook", middleware.InternalAuth(deps.InternalAPIKey))
	{
		webhook.POST("/lowBattery", deps.WebhookHandler.LowBattery)
		webhook.POST("/speedChange", deps.WebhookHandler.SpeedChange)
	}

	return router
}
