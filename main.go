package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-checkout/internal/analytics"
	analytics_api "ms-checkout/internal/analytics/api"
	"ms-checkout/internal/auth"
	"ms-checkout/internal/cart"
	cart_api "ms-checkout/internal/cart/api"
	cartdb "ms-checkout/internal/cart/db"
	"ms-checkout/internal/catalog"
	"ms-checkout/internal/checkout"
	checkout_api "ms-checkout/internal/checkout/api"
	checkoutdb "ms-checkout/internal/checkout/db"
	"ms-checkout/internal/config"
	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/kafka"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/payment/payos"
	"ms-checkout/internal/payment/storage"
	"ms-checkout/internal/settlement"
	"ms-checkout/internal/sse"
	"ms-checkout/internal/tickets"
	ticket_api "ms-checkout/internal/tickets/api"
	ticketdb "ms-checkout/internal/tickets/db"
	"ms-checkout/internal/tickets/qr"
	"ms-checkout/internal/tickets/template"
	"ms-checkout/internal/voucher"
	voucher_api "ms-checkout/internal/voucher/api"
	voucherdb "ms-checkout/internal/voucher/db"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(cfg.Host+":"+cfg.Port),
		pgdriver.WithUser(cfg.Username),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(true),
	))

	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Checkout Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	// Schema: versioned SQL when the directory exists, bun models otherwise
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		AutoMigrate:   true,
		SeedData:      getEnv("SEED_DATA", "") == "true",
	})
	if err := runner.RunMigrations(); err != nil {
		log.Warn("DATABASE", fmt.Sprintf("SQL migrations unavailable (%v), falling back to model sync", err))
		checkoutdb.Migrate(bunDB)
	}

	var orderPublisher checkout.KafkaPublisher
	var settlementPublisher settlement.KafkaPublisher
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.PaymentSucceeded}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.PaymentSucceeded)
		defer producer.Close()
		orderPublisher = producer
		settlementPublisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	tokenCache := auth.NewRedisTokenCache(redisClient)
	tokenSource := auth.NewM2MTokenSource(models.AuthConfig{
		KeycloakURL:   cfg.Auth.KeycloakURL,
		KeycloakRealm: cfg.Auth.KeycloakRealm,
		ClientID:      cfg.Auth.ClientID,
		ClientSecret:  cfg.Auth.ClientSecret,
	}, httpClient, tokenCache, log)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, httpClient, tokenSource, log)

	gatewayClient := payos.NewClient(cfg.Gateway, log)

	linkStore, err := storage.NewPostgreSQLStoreWithDB(bunDB.DB, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize payment link store: %v", err))
	}

	checkoutDB := &checkoutdb.DB{Bun: bunDB}
	orderService := checkout.NewOrderService(checkoutDB, catalogClient, gatewayClient, linkStore, orderPublisher, cfg.Gateway.Currency, log)

	emitter := sse.NewSettlementEventEmitter()
	qrGen := qr.NewGenerator(getEnv("QR_SECRET_KEY", "dev-only-secret"))
	settlementLock := settlement.NewRedisLock(redisClient, log)
	settlementService := settlement.NewService(checkoutDB, gatewayClient, settlementLock, qrGen, linkStore, settlementPublisher, emitter, log)

	// Settlement can land on any instance; the consumer bridges the event back
	// so SSE subscribers connected elsewhere still hear about it. Subscribers
	// on the settling instance may see the event twice.
	if cfg.Kafka.Enabled {
		// Each instance consumes in its own group so every instance sees
		// every settlement event
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentSucceeded, "ms-checkout-sse-"+uuid.NewString())
		defer consumer.Close()

		consumerCtx, stopConsumer := context.WithCancel(ctx)
		defer stopConsumer()
		go consumer.Start(consumerCtx, emitter.NotifySettled)
		log.Info("KAFKA", "Settlement event consumer started")
	}

	ticketService := tickets.NewService(&ticketdb.DB{Bun: bunDB}, template.NewTicketPDFGenerator(), log)
	cartService := cart.NewService(&cartdb.DB{Bun: bunDB}, catalogClient, log)
	voucherService := voucher.NewService(&voucherdb.DB{Bun: bunDB}, log)

	analyticsService := analytics.NewService(bunDB)

	checkoutHandler := checkout_api.NewHandler(orderService, settlementService, emitter, log)
	ticketHandler := ticket_api.NewHandler(ticketService, log)
	cartHandler := cart_api.NewHandler(cartService, log)
	voucherHandler := voucher_api.NewHandler(voucherService, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	issuer := cfg.Auth.OIDCIssuer
	if issuer == "" {
		issuer = fmt.Sprintf("%s/realms/%s", cfg.Auth.KeycloakURL, cfg.Auth.KeycloakRealm)
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := linkStore.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	// The gateway redirects the browser here without our bearer token; the
	// endpoint is safe to expose because settlement verifies with the gateway
	// and is idempotent
	r.Get("/api/payments/success", checkoutHandler.PaymentSuccess)
	// SSE endpoint does its own token handling since EventSource cannot set
	// an Authorization header
	r.Get("/api/orders/{orderId}/events", checkoutHandler.SubscribeOrderEvents)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.ListItems)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{cartItemId}", cartHandler.UpdateItem)
				r.Delete("/items/{cartItemId}", cartHandler.RemoveItem)
			})
			log.Info("ROUTER", "Cart routes registered under /api/cart")

			r.Route("/vouchers", func(r chi.Router) {
				r.Get("/", voucherHandler.ListMyVouchers)
				r.Post("/claim", voucherHandler.ClaimVoucher)
			})
			log.Info("ROUTER", "Voucher routes registered under /api/vouchers")

			r.Post("/checkout/preview", checkoutHandler.Preview)
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", checkoutHandler.PlaceOrder)
				r.Get("/{orderId}", checkoutHandler.GetOrder)
				r.Get("/{orderId}/tickets", ticketHandler.GetOrderTickets)
			})
			log.Info("ROUTER", "Checkout routes registered under /api/orders")

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", ticketHandler.GetMyTickets)
				r.Get("/{ticketId}", ticketHandler.GetTicket)
				r.Get("/{ticketId}/pdf", ticketHandler.DownloadTicketPDF)
				r.Post("/redeem", ticketHandler.RedeemTicket)
			})
			log.Info("ROUTER", "Ticket routes registered under /api/tickets")

			analyticsHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Analytics routes registered under /api/analytics")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Checkout Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Checkout Service shutdown complete")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
