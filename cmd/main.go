package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"delivery-marketplace/internal/cart"
	"delivery-marketplace/internal/checkout"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/database"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/messaging"
	"delivery-marketplace/internal/services/courier"
	"delivery-marketplace/internal/services/menu"
	"delivery-marketplace/internal/services/notification"
	"delivery-marketplace/internal/services/order"
	"delivery-marketplace/internal/services/tracking"
	"delivery-marketplace/internal/session"
	"delivery-marketplace/internal/tracing"
)

func main() {
	var (
		mode              = flag.String("mode", "", "Service mode (order-service, courier-worker, tracking-service, notification-subscriber)")
		port              = flag.Int("port", 3000, "HTTP port")
		maxConcurrent     = flag.Int("max-concurrent", 50, "Maximum concurrent price lookups")
		courierName       = flag.String("courier-name", "", "Courier name (required for courier-worker mode)")
		city              = flag.String("city", "", "City the courier serves (empty serves all)")
		heartbeatInterval = flag.Int("heartbeat-interval", 30, "Heartbeat interval in seconds")
		prefetch          = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": *port,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	switch *mode {
	case "order-service":
		if err := runOrderService(ctx, cfg, log, *port, *maxConcurrent); err != nil {
			log.Error("service_failed", "Order service failed", requestID, err, nil)
			os.Exit(1)
		}
	case "courier-worker":
		if *courierName == "" {
			log.Error("validation_failed", "courier-name is required for courier-worker mode", requestID, nil, nil)
			os.Exit(1)
		}
		if err := runCourierWorker(ctx, cfg, log, *courierName, *city, *heartbeatInterval, *prefetch); err != nil {
			log.Error("service_failed", "Courier worker failed", requestID, err, nil)
			os.Exit(1)
		}
	case "tracking-service":
		if err := runTrackingService(ctx, cfg, log, *port, *heartbeatInterval); err != nil {
			log.Error("service_failed", "Tracking service failed", requestID, err, nil)
			os.Exit(1)
		}
	case "notification-subscriber":
		if err := runNotificationSubscriber(ctx, cfg, log); err != nil {
			log.Error("service_failed", "Notification subscriber failed", requestID, err, nil)
			os.Exit(1)
		}
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runOrderService runs the customer-facing ordering API.
func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, port, maxConcurrent int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("redis_connected", "Connected to Redis", requestID, nil)

	tracer, shutdownTracing, err := tracing.Init("order-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	publisher := messaging.NewPublisher(conn, log)

	sessionTTL := time.Duration(cfg.Redis.SessionTTLMin) * time.Minute
	menuCacheTTL := time.Duration(cfg.Redis.MenuCacheTTLSec) * time.Second

	sessions := session.NewStore(redisClient, sessionTTL)
	carts := cart.NewStore()

	menuRepo := menu.NewRepository(db)
	menuSvc := menu.NewService(menuRepo, redisClient, menuCacheTTL, maxConcurrent, log)

	orderRepo := order.NewRepository(db)
	orderSvc := order.NewService(orderRepo, menuSvc, publisher, cfg.Pricing, log)

	policy := checkout.Policy{DeliveryFee: cfg.Pricing.DeliveryFee, TaxRate: cfg.Pricing.TaxRate}
	checkoutSvc := checkout.NewService(orderSvc, policy)

	handler := order.NewHandler(sessions, carts, checkoutSvc, orderSvc, menuSvc, log, tracer)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.SetupRoutes(),
	}

	go func() {
		log.Info("service_started", fmt.Sprintf("Order Service started on port %d", port), requestID, map[string]interface{}{
			"port":           port,
			"max_concurrent": maxConcurrent,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

// runCourierWorker runs a courier consuming the dispatch queue.
func runCourierWorker(ctx context.Context, cfg *config.Config, log *logger.Logger, courierName, city string, heartbeatInterval, prefetch int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	consumer := messaging.NewConsumer(conn, log, messaging.DispatchQueue, courierName, prefetch)
	publisher := messaging.NewPublisher(conn, log)

	worker := courier.NewWorker(courierName, city, time.Duration(heartbeatInterval)*time.Second, prefetch,
		db, consumer, publisher, log)

	return worker.Start(ctx)
}

// runTrackingService runs the read-only tracking API.
func runTrackingService(ctx context.Context, cfg *config.Config, log *logger.Logger, port, heartbeatInterval int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	tracer, shutdownTracing, err := tracing.Init("tracking-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	service := tracking.NewService(db, log, time.Duration(heartbeatInterval)*time.Second)
	handler := tracking.NewHandler(service, log, tracer)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.SetupRoutes(),
	}

	go func() {
		log.Info("service_started", fmt.Sprintf("Tracking Service started on port %d", port), requestID, map[string]interface{}{
			"port": port,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

// runNotificationSubscriber runs the fanout notification consumer.
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", 1)
	subscriber := notification.NewSubscriber(consumer, log)

	return subscriber.Start(ctx)
}
