package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every environment-driven setting of the campaign console
// backend. Only this struct may be used to read configuration; no direct
// access to env vars or other config sources elsewhere.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"geocampaign"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`
	AppBaseUrl          string `env:"APP_BASE_URL"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	DispatchQueueName          string        `env:"DISPATCH_QUEUE_NAME" default:"campaign:dispatch"`
	DispatchConsumerGroup      string        `env:"DISPATCH_CONSUMER_GROUP" default:"dispatchers"`
	DispatchConsumerName       string        `env:"DISPATCH_CONSUMER_NAME"`
	DispatchMaxRetries         int           `env:"DISPATCH_MAX_RETRIES"`
	DispatchVisibilityTimeout  time.Duration `env:"DISPATCH_VISIBILITY_TIMEOUT"`
	DispatchPollInterval       time.Duration `env:"DISPATCH_POLL_INTERVAL"`
	DispatchBatchSize          int64         `env:"DISPATCH_BATCH_SIZE"`
	DispatchQueueMaxLen        int64         `env:"DISPATCH_QUEUE_MAX_LEN"`
	DispatchEnableDLQ          bool          `env:"DISPATCH_ENABLE_DLQ"`
	DispatchSendLockTTL        time.Duration `env:"DISPATCH_SEND_LOCK_TTL"`
	DispatchDeliveryBatchLimit int           `env:"DISPATCH_DELIVERY_BATCH_LIMIT"`

	ProviderPrimaryUrl   string `env:"PROVIDER_PRIMARY_URL"`
	ProviderSecondaryUrl string `env:"PROVIDER_SECONDARY_URL"`

	UploadDir          string `env:"UPLOAD_DIR" default:"./uploads"`
	UploadBaseURL      string `env:"UPLOAD_BASE_URL" default:"/api/v1/images"`
	UploadMaxSizeBytes int64  `env:"UPLOAD_MAX_SIZE_BYTES" default:"5242880"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
