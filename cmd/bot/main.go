package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/linkhoard/linkhoard/config"
	"github.com/linkhoard/linkhoard/internal/bot"
	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/clients/kafka_client"
	"github.com/linkhoard/linkhoard/internal/logging"
	"github.com/linkhoard/linkhoard/internal/pipeline"
	"github.com/linkhoard/linkhoard/internal/store"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		slog.Error("[Main] TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}

	dynamoClient, err := clients.NewDynamoDBClient(ctx)
	if err != nil {
		slog.Error("[Main] Failed to initialize DynamoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}

	valkeyClient, err := clients.NewValkeyClient()
	if err != nil {
		slog.Error("[Main] Failed to initialize Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer valkeyClient.Close()

	producer, err := kafka_client.NewProducer(kafka_client.GetKafkaConfig())
	if err != nil {
		slog.Error("[Main] Failed to initialize Kafka producer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer producer.Close()

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Store: store.NewDynamoStore(dynamoClient),
		Dedup: valkeyClient,
		Queue: producer,
	})

	handler, err := bot.NewHandler(token, orchestrator)
	if err != nil {
		slog.Error("[Main] Failed to initialize bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler.Start(ctx)
}
