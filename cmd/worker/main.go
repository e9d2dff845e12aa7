package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/hrzones/internal/config"
	"example.com/hrzones/internal/consumer"
	"example.com/hrzones/internal/domain"
	"example.com/hrzones/internal/hrzone"
	"example.com/hrzones/internal/outbox"
	"example.com/hrzones/internal/persistence/postgres"
	"example.com/hrzones/internal/strava"
	httptransport "example.com/hrzones/internal/transport/http"
	"example.com/hrzones/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	stravaClient := strava.NewClient(cfg.StravaBaseURL, cfg.StravaTimeout, repo)
	calculator := hrzone.NewCalculator(repo)
	summaries := domain.NewSummaryService(repo, repo, repo)
	zoneWorker := worker.New(repo, repo, stravaClient, calculator, summaries)
	runner := worker.NewQueueRunner(repo, zoneWorker, cfg.QueuePollInterval, cfg.QueueBatchSize)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()
	dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.WebhookGroupID,
		Topic:           cfg.WebhookTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	webhookHandler := consumer.NewWebhookHandler(zoneWorker, repo, stravaClient)
	processor := consumer.NewProcessor(reader, webhookHandler)

	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.MetricsAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.OperationalRoutes())

	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	go dispatcher.Start(ctx)
	go runner.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer reader.Close()

		log.Printf("webhook consumer started (topic=%s, group=%s)", cfg.WebhookTopic, cfg.WebhookGroupID)
		if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("webhook consumer stopped with error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("worker shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	dispatcher.Wait()
	runner.Wait()
	wg.Wait()
}
