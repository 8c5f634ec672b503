package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"eventpass/config"
	"eventpass/internal/gateway/paystack"
	"eventpass/internal/handlers"
	"eventpass/internal/services"
	"eventpass/internal/store"
	_ "eventpass/migrations"
	"eventpass/monitoring"
	"eventpass/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub (optional; fulfillment falls back to email only)
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	// Initialize Paystack
	gateway := paystack.NewClient(&paystack.ClientConfig{
		BaseURL:   cfg.PaystackBaseURL,
		SecretKey: cfg.PaystackSecretKey,
		Timeout:   cfg.GatewayTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	inventory := store.New(app)
	fulfillmentService := services.NewFulfillmentService(redisClient, services.NewAppMailer(app), pn, cfg)
	purchaseService := services.NewPurchaseService(inventory, gateway, cfg)
	settlementService := services.NewSettlementService(inventory, gateway, fulfillmentService, cfg)

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(app, purchaseService, settlementService, inventory, cfg.PaystackSecretKey)
	eventHandler := handlers.NewEventHandler(app, inventory)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	go fulfillmentService.ProcessJobs(ctx)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Metrics endpoint on its own port
	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Payment endpoints
		e.Router.POST("/api/v1/payment/initialize", paymentHandler.InitializePayment)
		e.Router.POST("/api/v1/payment/verify", paymentHandler.VerifyPayment)
		e.Router.POST("/api/v1/payment/webhook", paymentHandler.PaystackWebhook)

		// Ticket endpoints
		e.Router.GET("/api/v1/tickets", paymentHandler.MyTickets)

		// Event endpoints
		e.Router.GET("/api/v1/events/{eventId}", eventHandler.GetEvent)
		e.Router.PATCH("/api/v1/events/{eventId}/capacity", eventHandler.UpdateCapacity)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
