package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Catalog  CatalogConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	OrderCreated     string
	PaymentSucceeded string
}

// GatewayConfig configures the PayOS-style payment gateway client.
type GatewayConfig struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	Currency    string
	Timeout     time.Duration
}

type CatalogConfig struct {
	BaseURL string
}

type AuthConfig struct {
	OIDCIssuer    string
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "checkout_user"),
			Password:     getEnv("DB_PASSWORD", "checkout_pass"),
			Database:     getEnv("DB_NAME", "checkout"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				OrderCreated:     getEnv("KAFKA_TOPIC_ORDER_CREATED", "checkout.orders.created"),
				PaymentSucceeded: getEnv("KAFKA_TOPIC_PAYMENT_SUCCEEDED", "checkout.payments.succeeded"),
			},
		},
		Gateway: GatewayConfig{
			BaseURL:     getEnv("PAYOS_BASE_URL", "https://api-merchant.payos.vn"),
			ClientID:    getEnv("PAYOS_CLIENT_ID", ""),
			APIKey:      getEnv("PAYOS_API_KEY", ""),
			ChecksumKey: getEnv("PAYOS_CHECKSUM_KEY", ""),
			ReturnURL:   getEnv("PAYOS_RETURN_URL", "http://localhost:3000/payment/success"),
			CancelURL:   getEnv("PAYOS_CANCEL_URL", "http://localhost:3000/payment/cancel"),
			Currency:    getEnv("PAYMENT_CURRENCY", "VND"),
			Timeout:     time.Duration(getEnvInt("PAYOS_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL: getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"),
		},
		Auth: AuthConfig{
			OIDCIssuer:    getEnv("OIDC_ISSUER", ""),
			KeycloakURL:   getEnv("KEYCLOAK_URL", "http://localhost:8180"),
			KeycloakRealm: getEnv("KEYCLOAK_REALM", "marketplace"),
			ClientID:      getEnv("KEYCLOAK_CLIENT_ID", "checkout-service"),
			ClientSecret:  getEnv("KEYCLOAK_CLIENT_SECRET", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
