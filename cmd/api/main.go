package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-backend/internal/api"
	"github.com/example/ec-backend/internal/auth"
	"github.com/example/ec-backend/internal/cache"
	"github.com/example/ec-backend/internal/config"
	"github.com/example/ec-backend/internal/infrastructure/kafka"
	"github.com/example/ec-backend/internal/infrastructure/store"
	"github.com/example/ec-backend/internal/inventory"
	"github.com/example/ec-backend/internal/orders"
	"github.com/example/ec-backend/internal/payment"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log.Println("[API] ========================================")
	log.Println("[API] EC Backend")
	log.Println("[API] ========================================")
	log.Printf("[API] Store backend: %s", cfg.StoreBackend)

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[API] Failed to initialize store: %v", err)
	}
	defer cleanup()

	// Kafka is optional; with no brokers configured events are dropped.
	var publisher orders.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
		log.Printf("[API] Kafka: %v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
	} else {
		log.Println("[API] Kafka disabled (no brokers configured)")
	}

	productCache, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to redis: %v", err)
	}
	if productCache != nil {
		defer productCache.Close()
		log.Printf("[API] Redis cache: %s (ttl %s)", cfg.RedisAddr, cfg.CacheTTL)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	ledger := inventory.NewLedger(st)
	orderService := orders.NewService(st, st, ledger, publisher)
	reconciler := payment.NewReconciler(st, paymentPublisher(publisher))

	var paystack *payment.PaystackClient
	if cfg.PaystackSecretKey != "" {
		paystack = payment.NewPaystackClient(cfg.PaystackSecretKey)
	}
	var remita *payment.RemitaClient
	if cfg.RemitaMerchantID != "" {
		remita = payment.NewRemitaClient(cfg.RemitaMerchantID, cfg.RemitaAPIKey, cfg.RemitaServiceTypeID)
	}

	handlers := &api.Handlers{
		Auth:     api.NewAuthHandlers(st, jwtService),
		Products: api.NewProductHandlers(st, productCache),
		Orders:   api.NewOrderHandlers(orderService),
		Payments: api.NewPaymentHandlers(st, reconciler, paystack, remita),
		Contact:  api.NewContactHandlers(st),
		Services: api.NewServiceHandlers(st),
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(handlers, jwtService),
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}

// buildStore picks the persistence backend. The dynamo backend is a hybrid:
// the concurrency-sensitive collections (products, orders) live in DynamoDB
// behind conditional writes, while users, contact messages and service
// requests stay in Postgres.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Println("[API] WARNING: using in-memory store, data will not survive restarts")
		return store.NewMemoryStore(), func() {}, nil

	case "dynamo":
		client, err := store.NewDynamoClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, nil, err
		}
		dynamo := store.NewDynamoStore(client, cfg.DynamoProductsTable, cfg.DynamoOrdersTable)

		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(db)
		composite := &store.Composite{
			ProductStore:        dynamo,
			OrderStore:          dynamo,
			UserStore:           pg,
			ContactStore:        pg,
			ServiceRequestStore: pg,
		}
		return composite, func() { db.Close() }, nil

	default:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("[API] Connected to PostgreSQL")
		return store.NewPostgresStore(db), func() { db.Close() }, nil
	}
}

// paymentPublisher narrows the optional orders publisher for the reconciler.
func paymentPublisher(p orders.Publisher) payment.Publisher {
	if p == nil {
		return nil
	}
	return p
}
