package rest

import (
	"time"

	"github.com/Dhoini/subscription-commerce/config"
	"github.com/Dhoini/subscription-commerce/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-commerce/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-commerce/internal/cart"
	"github.com/Dhoini/subscription-commerce/internal/checkout"
	"github.com/Dhoini/subscription-commerce/internal/fulfillment"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/notification"
	"github.com/Dhoini/subscription-commerce/internal/provisioning"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies сервисы, которые обслуживает HTTP API
type Dependencies struct {
	Config       *config.Config
	Registry     *prometheus.Registry
	Validator    identity.TokenValidator
	Sessions     session.Store
	Catalog      service.CatalogService
	Accounts     service.AccountService
	Carts        *cart.Service
	Checkout     *checkout.Service
	Fulfillment  *fulfillment.Service
	Provisioning *provisioning.Service
	Notifier     *notification.ExpiryNotifier
	Reports      repository.ReportingRepository
	HealthChecks map[string]handlers.Checker
}

// corsConfig без списка источников разрешает все, но без credentials
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.SessionHeader, middleware.APIKeyHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(log *logger.Logger, deps Dependencies) *gin.Engine {
	cfg := deps.Config
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck(deps.HealthChecks))

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	auth := middleware.NewAuthMiddleware(deps.Validator, cfg.Auth.AdminEmails, log)

	// Инициализация обработчиков
	catalogHandler := handlers.NewCatalogHandler(deps.Catalog, log)
	cartHandler := handlers.NewCartHandler(deps.Carts, log)
	checkoutHandler := handlers.NewCheckoutHandler(deps.Checkout, deps.Fulfillment, deps.Carts, deps.Sessions, log)
	accountHandler := handlers.NewAccountHandler(deps.Accounts, log)
	functionsHandler := handlers.NewFunctionsHandler(deps.Provisioning, deps.Notifier, log)
	publicHandler := handlers.NewPublicHandler(deps.Reports, log)

	v1 := r.Group("/api/v1")
	{
		// Возврат с оплаты: токен заказа в URL, браузер приходит без заголовков
		v1.GET("/checkout/return", checkoutHandler.Return)

		portal := v1.Group("", auth.RequireAuth())
		portal.GET("/catalog/products", catalogHandler.GetProducts)

		// Корзина и оформление привязаны к сессии
		sessioned := portal.Group("", middleware.SessionID())
		{
			carts := sessioned.Group("/cart")
			carts.GET("", cartHandler.GetCart)
			carts.POST("/items", cartHandler.AddItem)
			carts.PATCH("/items/:productID/:tierID", cartHandler.UpdateItem)
			carts.DELETE("/items/:productID/:tierID", cartHandler.RemoveItem)
			carts.DELETE("", cartHandler.ClearCart)

			co := sessioned.Group("/checkout")
			co.POST("/start", checkoutHandler.Start)
			co.GET("", checkoutHandler.GetState)
			co.POST("/next", checkoutHandler.Next)
			co.POST("/previous", checkoutHandler.Previous)
			co.POST("/customer", checkoutHandler.SubmitCustomer)
			co.POST("/payment", checkoutHandler.SubmitPayment)
		}

		me := portal.Group("/me")
		{
			me.GET("", accountHandler.GetDashboard)
			me.GET("/subscriptions", accountHandler.GetSubscriptions)
			me.GET("/invoices", accountHandler.GetInvoices)
			me.POST("/subscription-requests", accountHandler.CreateSubscriptionRequest)
		}
	}

	functions := r.Group("/functions", auth.RequireAuth(), auth.RequireAdmin())
	{
		functions.POST("/provision-accounts", functionsHandler.ProvisionAccounts)
		functions.POST("/notify-expiring", functionsHandler.NotifyExpiring)
	}

	public := r.Group("/api/public/v1", middleware.RequireAPIKey(cfg.PublicAPI.DemoKey, cfg.PublicAPI.LivePrefix, log))
	{
		public.GET("/customers", publicHandler.ListCustomers)
		public.GET("/subscriptions", publicHandler.ListSubscriptions)
		public.GET("/invoices", publicHandler.ListInvoices)
		public.GET("/products", publicHandler.ListProducts)
		public.GET("/analytics", publicHandler.GetAnalytics)
	}
	return r
}
