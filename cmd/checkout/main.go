package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/repurpose-hub/checkout-service/internal/clients"
	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/events"
	"github.com/repurpose-hub/checkout-service/internal/handlers"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/metrics"
	"github.com/repurpose-hub/checkout-service/internal/repository"
	"github.com/repurpose-hub/checkout-service/internal/server"
	"github.com/repurpose-hub/checkout-service/internal/service"
)

type eventPublisher interface {
	service.EventPublisher
	Close() error
}

func main() {
	logger := logging.NewLoggerV2("checkout-service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", logging.Fields{"error": err.Error()})
	}
	logging.Configure(cfg.Log.Level, cfg.Log.Format)

	logging.Infof("Starting checkout-service on port %d", cfg.Server.Port)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	db, err := repository.OpenPostgres(startCtx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()
	logging.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	if cfg.Database.RunMigrations {
		if err := repository.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", logging.Fields{"error": err.Error()})
		}
	}

	mongoDB, err := repository.ConnectMongoDB(startCtx, cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", logging.Fields{"error": err.Error()})
	}
	defer mongoDB.Client().Disconnect(context.Background())

	redisClient := repository.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	checkoutRepo := repository.NewPostgresCheckoutRepository(db, logger)
	gatewayOrderRepo := repository.NewPostgresGatewayOrderRepository(db, logger)
	ecoRepo := repository.NewPostgresEcoImpactRepository(db, logger)
	cartStore := repository.NewMongoCartStore(mongoDB, cfg.Mongo.CartsCollection, logger)
	idempotencyStore := repository.NewRedisIdempotencyStore(redisClient)

	razorpay := clients.NewRazorpayClient(cfg.Gateway, m, logger)

	var publisher eventPublisher = events.NoopPublisher{}
	if cfg.Features.EnableCheckoutEvents {
		publisher = events.NewKafkaPublisher(cfg.Kafka, m, logger)
	}
	defer publisher.Close()

	guard := service.NewIdempotencyGuard(idempotencyStore, cfg.Redis.IdempotencyTTL, time.Now)
	amounts := service.NewAmountValidator(cartStore, cfg.Checkout, m)
	eco := service.NewEcoImpactUpdater(ecoRepo, cfg.Checkout.EcoBadge, time.Now)

	checkoutService := service.NewCheckoutService(
		checkoutRepo,
		gatewayOrderRepo,
		cartStore,
		guard,
		amounts,
		eco,
		publisher,
		cfg.Checkout,
		m,
	)

	paymentService := service.NewPaymentService(
		razorpay,
		gatewayOrderRepo,
		publisher,
		cfg.Checkout,
	)

	h := handlers.NewHandlers(checkoutService, paymentService, eco, cfg,
		handlers.ReadinessCheck{Name: "postgres", Ping: db.PingContext},
		handlers.ReadinessCheck{Name: "redis", Ping: idempotencyStore.Ping},
		handlers.ReadinessCheck{Name: "mongodb", Ping: cartStore.Ping},
		handlers.ReadinessCheck{Name: "razorpay", Ping: razorpay.Ping},
	)

	srv := server.New(h, cfg, m, registry)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                   cfg.Server.Port,
			"enable_checkout_events": cfg.Features.EnableCheckoutEvents,
			"enable_metrics":         cfg.Features.EnableMetrics,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}
