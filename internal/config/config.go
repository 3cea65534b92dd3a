package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Client   ClientConfig
}

type ServerConfig struct {
	Addr         string
	PingInterval time.Duration
	PongWait     time.Duration
	SeedProducts bool
	LogLevel     string
}

// DatabaseConfig selects the store. An empty URL runs the in-memory store.
type DatabaseConfig struct {
	URL string
}

// KafkaConfig enables the cross-instance relay and integration events when
// Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string
	ChangeTopic string
	GroupID     string
	// BatchTimeout bounds how long a synchronous publish waits for a batch
	// to fill.
	BatchTimeout time.Duration
}

type ClientConfig struct {
	APIURL            string
	WSURL             string
	Admin             bool
	CartID            string
	CartFile          string
	RedisAddr         string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	RequestTimeout    time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("HTTP_ADDR", ":8080"),
			PingInterval: getDuration("WS_PING_INTERVAL", 25*time.Second),
			PongWait:     getDuration("WS_PONG_WAIT", 60*time.Second),
			SeedProducts: getBool("SEED_PRODUCTS", true),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(getEnv("KAFKA_BROKERS", "")),
			ChangeTopic:  getEnv("KAFKA_CHANGE_TOPIC", "storefront.changes"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "storefront-relay-"+hostname),
			BatchTimeout: getDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
		},
		Client: ClientConfig{
			APIURL:            getEnv("API_URL", "http://localhost:8080"),
			WSURL:             getEnv("WS_URL", "ws://localhost:8080/ws"),
			Admin:             getBool("ADMIN", false),
			CartID:            getEnv("CART_ID", "default"),
			CartFile:          getEnv("CART_FILE", "cart.json"),
			RedisAddr:         getEnv("REDIS_ADDR", ""),
			ReconnectAttempts: getInt("RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:    getDuration("RECONNECT_DELAY", time.Second),
			ReconnectMaxDelay: getDuration("RECONNECT_MAX_DELAY", 30*time.Second),
			RequestTimeout:    getDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
	}, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.Server.PingInterval <= 0 || c.Server.PongWait <= c.Server.PingInterval {
		errs = append(errs, errors.New("WS_PONG_WAIT must be longer than WS_PING_INTERVAL"))
	}
	if _, err := c.Server.Level(); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.ChangeTopic == "" {
		errs = append(errs, errors.New("KAFKA_CHANGE_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.Client.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("RECONNECT_ATTEMPTS must not be negative"))
	}
	if c.Client.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("RECONNECT_DELAY must be positive"))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel as a slog level name (debug, info, warn, error).
func (s ServerConfig) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s.LogLevel))
	return level, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (k KafkaConfig) String() string {
	return fmt.Sprintf("brokers=%v topic=%s group=%s batch_timeout=%s", k.Brokers, k.ChangeTopic, k.GroupID, k.BatchTimeout)
}
