package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const appID = "storefront"

type config struct {
	LogLevel string `envconfig:"log_level" default:"info"`

	ServeAddress string `envconfig:"serve_address" default:":8080"`
	GRPCAddress  string `envconfig:"grpc_address" default:":9090"`

	DatabaseDSN             string        `envconfig:"database_dsn" required:"true"`
	DatabaseMaxConnections  int           `envconfig:"database_max_connections" default:"10"`
	DatabaseConnMaxLifetime time.Duration `envconfig:"database_conn_max_lifetime" default:"5m"`
	AutoMigrate             bool          `envconfig:"auto_migrate" default:"false"`

	RedisAddress     string        `envconfig:"redis_address"`
	RedisPassword    string        `envconfig:"redis_password"`
	PaymentLedgerTTL time.Duration `envconfig:"payment_ledger_ttl" default:"72h"`

	// NotificationChannel is either "log" or "rabbitmq".
	NotificationChannel   string `envconfig:"notification_channel" default:"log"`
	AMQPURL               string `envconfig:"amqp_url"`
	NotificationExchange  string `envconfig:"notification_exchange" default:"storefront.notifications"`
	NotificationWorkers   int    `envconfig:"notification_workers" default:"4"`
	NotificationQueueSize int    `envconfig:"notification_queue_size" default:"1024"`
	TrackingURLBase       string `envconfig:"tracking_url_base" default:"https://track.example"`

	KafkaBrokers      []string `envconfig:"kafka_brokers"`
	KafkaPaymentTopic string   `envconfig:"kafka_payment_topic" default:"payments"`
	KafkaGroupID      string   `envconfig:"kafka_group_id" default:"storefront"`

	WebhookSecret    string        `envconfig:"webhook_secret"`
	WebhookTolerance time.Duration `envconfig:"webhook_tolerance" default:"5m"`

	RestockOnCancel bool `envconfig:"restock_on_cancel" default:"true"`

	OTLPEndpoint string `envconfig:"otlp_endpoint"`
	OTLPInsecure bool   `envconfig:"otlp_insecure" default:"false"`
}

func parseEnv() (*config, error) {
	c := new(config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	return c, nil
}

func (c *config) validate() error {
	if c.WebhookSecret == "" {
		return errors.New("STOREFRONT_WEBHOOK_SECRET must be set")
	}
	switch c.NotificationChannel {
	case "log":
	case "rabbitmq":
		if c.AMQPURL == "" {
			return errors.New("STOREFRONT_AMQP_URL must be set for the rabbitmq notification channel")
		}
	default:
		return errors.Errorf("unknown notification channel %q", c.NotificationChannel)
	}
	if c.NotificationWorkers <= 0 || c.NotificationQueueSize <= 0 {
		return errors.New("notification workers and queue size must be positive")
	}
	return nil
}
