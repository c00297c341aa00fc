package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

type Config struct {
	HTTP_PORT string `env:"HTTP_PORT"`
	DB_STRING string `env:"DB_STRING"`
	LOG_DEV   bool   `env:"LOG_DEV"`

	KAFKA_BROKERS  string `env:"KAFKA_BROKERS"`
	KAFKA_TOPIC    string `env:"KAFKA_TOPIC"`
	KAFKA_GROUP_ID string `env:"KAFKA_GROUP_ID"`

	RABBITMQ_URL string `env:"RABBITMQ_URL"`
	REDIS_ADDR   string `env:"REDIS_ADDR"`

	KITCHEN_POLL_INTERVAL time.Duration `env:"KITCHEN_POLL_INTERVAL"`
	CATALOG_TTL           time.Duration `env:"CATALOG_TTL"`

	IDENTITY_TOKENS []StaticToken `env:"IDENTITY_TOKENS"`
}

// StaticToken is one bearer credential accepted when no identity store is configured.
type StaticToken struct {
	Token string
	Actor domain.Actor
}

// LoadConfig reads the environment, falling back to a .env file when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP_PORT:      os.Getenv("HTTP_PORT"),
		DB_STRING:      os.Getenv("DB_STRING"),
		LOG_DEV:        os.Getenv("LOG_DEV") == "true",
		KAFKA_BROKERS:  os.Getenv("KAFKA_BROKERS"),
		KAFKA_TOPIC:    os.Getenv("KAFKA_TOPIC"),
		KAFKA_GROUP_ID: os.Getenv("KAFKA_GROUP_ID"),
		RABBITMQ_URL:   os.Getenv("RABBITMQ_URL"),
		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}
	if cfg.KAFKA_TOPIC == "" {
		cfg.KAFKA_TOPIC = "order-events"
	}
	if cfg.KAFKA_GROUP_ID == "" {
		cfg.KAFKA_GROUP_ID = DefaultGroupID()
	}

	var err error
	if cfg.KITCHEN_POLL_INTERVAL, err = durationEnv("KITCHEN_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CATALOG_TTL, err = durationEnv("CATALOG_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IDENTITY_TOKENS, err = ParseTokens(os.Getenv("IDENTITY_TOKENS")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultGroupID is unique per process: every instance has its own kitchen
// queue, so every instance must see every order event.
func DefaultGroupID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "instance"
	}
	return "kitchen-queue-" + host + "-" + uuid.NewString()[:8]
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", key, d)
	}
	return d, nil
}

// ParseTokens parses a comma separated list of token:actorId:role triples.
func ParseTokens(raw string) ([]StaticToken, error) {
	var out []StaticToken
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("config: IDENTITY_TOKENS: malformed entry %q", entry)
		}
		role, err := domain.ParseRole(parts[2])
		if err != nil {
			return nil, fmt.Errorf("config: IDENTITY_TOKENS: %w", err)
		}
		out = append(out, StaticToken{
			Token: parts[0],
			Actor: domain.Actor{ID: parts[1], Role: role},
		})
	}
	return out, nil
}
