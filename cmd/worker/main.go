package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-backend/internal/config"
	"github.com/example/ec-backend/internal/infrastructure/kafka"
	"github.com/example/ec-backend/internal/infrastructure/store"
	"github.com/example/ec-backend/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("[Worker] KAFKA_BROKERS is required")
	}

	log.Println("[Worker] ========================================")
	log.Println("[Worker] EC Backend - Stock Alert Worker")
	log.Println("[Worker] ========================================")
	log.Printf("[Worker] Kafka: %v topic=%s group=%s", cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	log.Printf("[Worker] Low stock threshold: %d", cfg.LowStockThreshold)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Worker] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	alerter := worker.NewStockAlerter(store.NewPostgresStore(db), cfg.LowStockThreshold)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("[Worker] Shutting down...")
		cancel()
	}()

	if err := consumer.Consume(ctx, alerter.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Worker] Consumer error: %v", err)
	}
	log.Println("[Worker] Stopped")
}
