// Worker consumes notification messages from Kafka, delivers them by push or SMS and ships a
// delivery record to Loki. Set KAFKA_BROKERS, NOTIFY_KAFKA_TOPIC and KAFKA_GROUP_ID; SMS_LOCAL_*,
// PUSH_* and LOKI_URL enable the matching channel.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"voicetrust/backend/internal/config"
	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/notification"
	"voicetrust/backend/internal/notification/push"
	"voicetrust/backend/internal/notification/sms"
	"voicetrust/backend/internal/platform/logging"
	"voicetrust/backend/internal/security"
	"voicetrust/backend/internal/telemetry/loki"
)

// tokenSkew refreshes the push access token this long before it expires.
const tokenSkew = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("worker: KAFKA_BROKERS is required")
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	var smsSender notification.SMSSender
	if cfg.SMSLocalAPIKey != "" {
		c := sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
		c.HTTPClient = httpClient
		smsSender = c
	} else {
		logger.Warn("worker: SMS_LOCAL_API_KEY not set; sms messages are skipped")
	}

	var pushSender notification.PushSender
	if cfg.PushBaseURL != "" && cfg.PushTokenURL != "" {
		cache := security.NewTokenCache(push.ClientCredentials(httpClient, cfg.PushTokenURL, cfg.PushClientID, cfg.PushClientSecret), tokenSkew)
		pushSender = push.NewClient(cfg.PushBaseURL, cache, httpClient)
	} else {
		logger.Warn("worker: PUSH_BASE_URL/PUSH_TOKEN_URL not set; push messages are skipped")
	}

	var records notification.RecordShipper
	if cfg.LokiURL != "" {
		lc, err := loki.NewClient(cfg.LokiURL, httpClient)
		if err != nil {
			logger.Fatal("worker: loki client", zap.Error(err))
		}
		records = lc
	}

	deliverer := notification.NewDeliverer(pushSender, smsSender, records, logger, metrics.New(prometheus.NewRegistry()))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.NotifyKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker: consuming notifications",
		zap.String("topic", cfg.NotifyKafkaTopic), zap.String("group", cfg.KafkaGroupID))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker: stopped")
				return
			}
			logger.Warn("worker: kafka read error", zap.Error(err))
			continue
		}

		deliverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := deliverer.Deliver(deliverCtx, msg.Value); err != nil {
			logger.Warn("worker: delivery failed",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		cancel()
	}
}
