package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort int
	LogLevel   string
	Database   DatabaseConfig
	Session    SessionConfig
	Wallet     WalletConfig
	Login      LoginConfig
	MQ         MQConfig
	Storage    StorageConfig

	// PublicAPIKey, when set, must be sent as X-API-Key on /api routes.
	PublicAPIKey string

	// EnableBlockchain turns on wallets and the ballot ledger.
	EnableBlockchain bool

	MigrationsPath string
}

type DatabaseConfig struct {
	Driver   string
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool

	MaxOpenConns int
	MaxIdleConns int
	// ConnectAttempts bounds how often Open pings before giving up.
	ConnectAttempts int
}

type SessionConfig struct {
	Secret       string
	SecureCookie bool
}

type WalletConfig struct {
	// EncryptionKey seals recovery phrases at rest. 32 bytes.
	EncryptionKey []byte
}

type LoginConfig struct {
	RatePerSecond float64
	Burst         int
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID           string
	CredentialsFile     string
	SubscriptionSuffix  string
	MaxDeliveryAttempts int
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

func LoadConfig() Config {
	env := getEnv("ENV", "prod")
	if env == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		URL:      getEnv("DATABASE_URL", ""),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "evotar"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "evotar_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),

		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),
	}

	return Config{
		Env:        env,
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Database:   dbConfig,
		Session: SessionConfig{
			Secret:       strings.TrimSpace(getEnv("SESSION_SECRET", "")),
			SecureCookie: env != "dev",
		},
		Wallet: WalletConfig{
			EncryptionKey: getEnvHex("WALLET_ENCRYPTION_KEY"),
		},
		Login: LoginConfig{
			RatePerSecond: getEnvFloat("LOGIN_RATE_PER_SECOND", 1),
			Burst:         getEnvInt("LOGIN_RATE_BURST", 5),
		},
		MQ: MQConfig{
			Backend: getEnv("MQ_BACKEND", "none"),
			Channel: getEnv("MQ_TABULATE_CHANNEL", "evotar.tabulate"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 1),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			},
			PubSub: PubSubConfig{
				ProjectID:           getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:     getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix:  getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
				MaxDeliveryAttempts: getEnvInt("PUBSUB_MAX_DELIVERY_ATTEMPTS", 5),
			},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "none"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "evotar"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		PublicAPIKey:     strings.TrimSpace(getEnv("PUBLIC_API_KEY", "")),
		EnableBlockchain: getEnvBool("ENABLE_BLOCKCHAIN", false),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "internal/db/migrations"),
	}
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
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvHex(key string) []byte {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	value, err := hex.DecodeString(raw)
	if err != nil {
		return nil
	}
	return value
}
