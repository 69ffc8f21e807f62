package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Registration modes.
const (
	RegistrationImmediate = "immediate"
	RegistrationApproval  = "approval"
)

// Object storage backends.
const (
	StorageNone  = "none"
	StorageMinio = "minio"
	StorageGCS   = "gcs"
)

// Notifier backends.
const (
	NotifierLog      = "log"
	NotifierSMTP     = "smtp"
	NotifierRabbitMQ = "rabbitmq"
	NotifierPubSub   = "pubsub"
)

type Config struct {
	Env              string
	LogLevel         string
	ServerPort       int
	RegistrationMode string
	OTPTTL           time.Duration
	Database         DatabaseConfig
	JWT              JWTConfig
	Storage          StorageConfig
	Notifier         NotifierConfig
	Redis            RedisConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type NotifierConfig struct {
	Backend   string
	MailQueue string
	SMTP      SMTPConfig
	RabbitMQ  RabbitMQConfig
	PubSub    PubSubConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// RedisConfig points at the refresh-token denylist. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "taskhub"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "taskhub_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	jwtConfig := JWTConfig{
		Secret:     strings.TrimSpace(getEnv("JWT_SECRET", "")),
		AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 60*time.Minute),
		RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 24*time.Hour),
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageNone)),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "taskhub-profiles"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	notifierConfig := NotifierConfig{
		Backend:   strings.ToLower(getEnv("NOTIFIER_BACKEND", NotifierLog)),
		MailQueue: getEnv("MAIL_QUEUE", "taskhub.mail"),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	return Config{
		Env:              getEnv("ENV", "production"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ServerPort:       getEnvInt("SERVER_PORT", 8080),
		RegistrationMode: strings.ToLower(getEnv("REGISTRATION_MODE", RegistrationApproval)),
		OTPTTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
		Database:         dbConfig,
		JWT:              jwtConfig,
		Storage:          storageConfig,
		Notifier:         notifierConfig,
		Redis:            redisConfig,
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.RegistrationMode {
	case RegistrationImmediate, RegistrationApproval:
	default:
		errs = append(errs, fmt.Errorf("unknown REGISTRATION_MODE %q", c.RegistrationMode))
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMinio, StorageGCS:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Notifier.Backend {
	case NotifierLog, NotifierSMTP, NotifierRabbitMQ, NotifierPubSub:
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER_BACKEND %q", c.Notifier.Backend))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}
