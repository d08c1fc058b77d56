package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/telehealth-scheduling/cmd/mainconfig"
	"github.com/carebridge/telehealth-scheduling/internal/archive"
	"github.com/carebridge/telehealth-scheduling/internal/availability"
	"github.com/carebridge/telehealth-scheduling/internal/booking"
	appconfig "github.com/carebridge/telehealth-scheduling/internal/config"
	"github.com/carebridge/telehealth-scheduling/internal/events"
	"github.com/carebridge/telehealth-scheduling/internal/notify"
	"github.com/carebridge/telehealth-scheduling/internal/observability/metrics"
	"github.com/carebridge/telehealth-scheduling/internal/storage"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	store := storage.NewDynamoStore(dynamoClient, cfg.TablePrefix, logger)

	var cache *availability.ProfileCache
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = availability.NewProfileCache(redis.NewClient(redisOpts), cfg.ProfileCacheTTL)
	}
	profiles := availability.NewProfileRepository(store, cache, logger)

	sinks := []events.Emitter{events.NewLogEmitter(logger)}
	if cfg.AppointmentEventsQueueURL != "" {
		sinks = append(sinks, events.NewSQSEmitter(sqs.NewFromConfig(awsConfig), cfg.AppointmentEventsQueueURL))
	}
	if cfg.NotifyFromEmail != "" {
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsConfig), notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger)
		sinks = append(sinks, notify.NewService(sender, notify.NewStoreDirectory(store), logger))
	}
	auditStore := archive.NewStore(s3.NewFromConfig(awsConfig), cfg.AuditArchiveBucket, logger)
	if auditStore.Enabled() {
		sinks = append(sinks, auditStore)
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	engine := booking.NewEngine(
		booking.NewRepository(store),
		profiles,
		events.NewFanout(sinks...),
		logger,
		booking.WithMinCancelNotice(cfg.MinCancelNotice),
		booking.WithMetrics(bookingMetrics),
	)
	sweeper := booking.NewNoShowSweeper(engine, logger,
		booking.WithSweepInterval(cfg.NoShowSweepInterval),
		booking.WithSweepMetrics(bookingMetrics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down no-show worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(doneCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	select {
	case <-done:
		logger.Info("no-show worker stopped")
	case <-doneCtx.Done():
		logger.Error("no-show worker shutdown timed out", "error", doneCtx.Err())
	}
}
