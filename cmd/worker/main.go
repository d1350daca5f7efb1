package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/contact-ingest/internal/config"
	"github.com/ignite/contact-ingest/internal/metrics"
	"github.com/ignite/contact-ingest/internal/pkg/distlock"
	"github.com/ignite/contact-ingest/internal/pkg/logger"
	"github.com/ignite/contact-ingest/internal/queue"
	"github.com/ignite/contact-ingest/internal/repository/postgres"
	"github.com/ignite/contact-ingest/internal/service/ingest"
	"github.com/ignite/contact-ingest/internal/storage"
)

func main() {
	// Bootstrap logger; replaced once configuration is loaded
	log := logger.New("INFO", "json")

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Msg("Starting contact ingest worker")

	// Database connection
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// AWS clients share one config, including the retry policy
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithRetryMaxAttempts(cfg.AWS.MaxRetries),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	s3Client := s3.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)

	// Optional Redis backend for the job dispatch lock
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		log.Info().Msg("Redis dispatch lock enabled")
	}

	// Repositories
	jobRepo := postgres.NewJobRepo(db)
	stagingRepo := postgres.NewStagingRepo(db)
	issueRepo := postgres.NewIssueRepo(db)
	contactRepo := postgres.NewContactRepo(db)

	// Services
	blobs := storage.NewS3Store(s3Client, cfg.Storage.Bucket)
	processor := ingest.NewProcessor(jobRepo, stagingRepo, issueRepo, contactRepo, blobs,
		cfg.Processing.ProgressUpdateInterval, log)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	locks := distlock.NewFactory(redisClient, db, time.Duration(cfg.Queue.VisibilityTimeout)*time.Second)

	consumer := queue.NewConsumer(sqsClient, cfg.Queue.URL, processor, locks, collector, log,
		cfg.Queue.MaxNumberOfMessages, cfg.Queue.WaitTimeSeconds, cfg.Queue.VisibilityTimeout,
		cfg.Queue.RetryDelaySeconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)

	// Optional metrics and health listener
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		checker := metrics.NewHealthChecker(db, redisClient, s3Client, cfg.Storage.Bucket)
		metricsSrv = &http.Server{
			Addr:         cfg.Metrics.Addr,
			Handler:      metrics.Routes(prometheus.DefaultGatherer, checker),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics listener started")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")

	cancel()
	consumer.Stop()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics listener forced to shutdown")
		}
	}

	log.Info().Msg("Worker stopped")
}
