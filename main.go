package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"shopcore/cache"
	"shopcore/database"
	"shopcore/events"
	"shopcore/handlers"
	"shopcore/kafka"
	"shopcore/middleware"
	"shopcore/models"
	"shopcore/service"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize Redis for the catalog cache
	rdb, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing("shopcore")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Event bus and the Kafka notifier bridging it to order_events
	bus := events.NewBus(logger)
	defer bus.Close()

	notifierCtx, cancelNotifier := context.WithCancel(context.Background())
	defer cancelNotifier()
	notifier := kafka.NewNotifier(producer, logger)
	go notifier.Run(notifierCtx, bus.Subscribe(256))

	// Services
	catalog := cache.NewCatalog(db, rdb, 5*time.Minute, logger)
	cartService := service.NewCartService(db, catalog, logger)
	checkoutService := service.NewCheckoutService(db, catalog, bus, logger)
	orderService := service.NewOrderService(db, bus, logger)
	paymentService := service.NewPaymentService(db, orderService, bus, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("shopcore"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	cartHandler := handlers.NewCartHandler(cartService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)
	orderHandler := handlers.NewOrderHandler(orderService, logger)
	fulfillmentHandler := handlers.NewFulfillmentHandler(orderService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)

	authed := router.Group("/", middleware.AuthRequired(logger))
	{
		authed.GET("/cart", cartHandler.GetCart)
		authed.POST("/cart/items", cartHandler.AddItem)
		authed.PUT("/cart/items/:id", cartHandler.UpdateItem)
		authed.DELETE("/cart/items/:id", cartHandler.RemoveItem)
		authed.DELETE("/cart", cartHandler.Clear)

		authed.POST("/checkout", checkoutHandler.Checkout)

		authed.GET("/orders", orderHandler.ListOrders)
		authed.GET("/orders/:id", orderHandler.GetOrder)
		authed.POST("/orders/:id/cancel", orderHandler.CancelOrder)

		fulfillment := authed.Group("/fulfillment",
			middleware.RequireRole(models.RoleShipper, models.RoleAdmin))
		fulfillment.POST("/orders/:id/status", fulfillmentHandler.UpdateStatus)

		payments := authed.Group("/payments",
			middleware.RequireRole(models.RoleShipper, models.RoleAdmin))
		payments.POST("/orders/:id/receipt", paymentHandler.ConfirmReceipt)
	}

	// Gateway webhook: authenticated by the gateway's shared secret at the
	// edge proxy, not by a user token.
	router.POST("/payments/gateway/callback", paymentHandler.GatewayCallback)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Order lifecycle service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
