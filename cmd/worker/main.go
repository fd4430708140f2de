package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/linkhoard/linkhoard/config"
	"github.com/linkhoard/linkhoard/internal/classify"
	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/clients/kafka_client"
	"github.com/linkhoard/linkhoard/internal/extract"
	"github.com/linkhoard/linkhoard/internal/logging"
	"github.com/linkhoard/linkhoard/internal/models"
	"github.com/linkhoard/linkhoard/internal/notify"
	"github.com/linkhoard/linkhoard/internal/pipeline"
	"github.com/linkhoard/linkhoard/internal/store"
	"github.com/linkhoard/linkhoard/internal/worker"
)

const stuckItemAge = 15 * time.Minute

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dynamoClient, err := clients.NewDynamoDBClient(ctx)
	if err != nil {
		slog.Error("[Main] Failed to initialize DynamoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}
	itemStore := store.NewDynamoStore(dynamoClient)

	valkeyClient, err := clients.NewValkeyClient()
	if err != nil {
		slog.Error("[Main] Failed to initialize Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer valkeyClient.Close()

	openaiClient, err := clients.NewOpenAIClient()
	if err != nil {
		slog.Error("[Main] OpenAI credential is required", slog.String("error", err.Error()))
		os.Exit(1)
	}

	githubClient := clients.NewGitHubClient()
	fetchClient := clients.NewFetchClient()
	candidates := extract.NewCandidateFinder(openaiClient, githubClient)

	// The short-video path degrades to a configuration failure at extract
	// time when the transcription credential is absent.
	var transcriber extract.Transcriber
	if deepgram, err := clients.NewDeepgramClient(); err != nil {
		slog.Warn("[Main] Transcription disabled", slog.String("error", err.Error()))
	} else {
		transcriber = deepgram
	}

	// Optional grounded path; the social extractor falls back to the embed
	// widget when this is nil.
	var grok extract.GrokFetcher
	if g := clients.NewGrokClient(); g != nil {
		grok = g
	}

	extractors := map[models.SourceKind]extract.Extractor{
		models.SourceShortVideo: extract.NewShortVideoExtractor(clients.NewUnfurlClient(), transcriber, fetchClient, candidates),
		models.SourceSocialPost: extract.NewSocialPostExtractor(grok, clients.NewOEmbedClient(), fetchClient),
		models.SourceCodeRepo:   extract.NewRepoMetaExtractor(githubClient),
		models.SourceArticle:    extract.NewArticleExtractor(fetchClient),
	}

	var notifier pipeline.Notifier
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		b, err := tgbot.New(token)
		if err != nil {
			slog.Warn("[Main] Notifications disabled", slog.String("error", err.Error()))
		} else {
			notifier = notify.NewTelegramNotifier(b)
		}
	} else {
		slog.Warn("[Main] TELEGRAM_BOT_TOKEN not set, notifications disabled")
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Store:      itemStore,
		Dedup:      valkeyClient,
		Extractors: extractors,
		Classifier: classify.NewClassifier(openaiClient),
		Notifier:   notifier,
	})

	if reclaimed, err := orchestrator.SweepStuck(ctx, stuckItemAge); err != nil {
		slog.Error("[Main] Stuck-item sweep failed", slog.String("error", err.Error()))
	} else if reclaimed > 0 {
		slog.Info("[Main] Startup sweep reclaimed items", slog.Int("count", reclaimed))
	}

	consumer, err := kafka_client.NewConsumer(kafka_client.GetKafkaConfig())
	if err != nil {
		slog.Error("[Main] Failed to initialize Kafka consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer consumer.Close()

	worker.Run(ctx, consumer, orchestrator)
}
