package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const appID = "orderservice"

type config struct {
	LogLevel string `envconfig:"log_level" default:"info"`

	RESTAddress string `envconfig:"rest_address" default:":8080"`
	GRPCAddress string `envconfig:"grpc_address" default:":8081"`

	DatabaseUser           string `envconfig:"database_user" default:"orderservice"`
	DatabasePassword       string `envconfig:"database_password" default:"orderservice"`
	DatabaseHost           string `envconfig:"database_host" default:"localhost:3306"`
	DatabaseName           string `envconfig:"database_name" default:"orderservice"`
	DatabaseMaxConnections int    `envconfig:"database_max_connections" default:"10"`

	KafkaBrokers          []string `envconfig:"kafka_brokers" default:"localhost:9092"`
	OrderEventsTopic      string   `envconfig:"order_events_topic" default:"order-events"`
	RestaurantEventsTopic string   `envconfig:"restaurant_events_topic" default:"restaurant-events"`
	ConsumerGroup         string   `envconfig:"consumer_group" default:"order-service"`

	// Empty disables redelivery dedup of restaurant events.
	RedisAddress          string        `envconfig:"redis_address"`
	ProcessedEventsTTL    time.Duration `envconfig:"processed_events_ttl" default:"24h"`
	ReconcilerParallelism int           `envconfig:"reconciler_parallelism" default:"4"`

	ShutdownTimeout time.Duration `envconfig:"shutdown_timeout" default:"15s"`
}

func parseEnv() (*config, error) {
	c := new(config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	return c, nil
}

func initLogger(c *config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	logger.SetLevel(level)
	return logger, nil
}
