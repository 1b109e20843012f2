package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for both services. Core feed endpoints carry
// fixed defaults; environment variables are the wrapper-level override.
type Config struct {
	// Service name
	ServiceName string

	// gRPC health server port
	GRPCPort int

	// HTTP health server port
	HTTPPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// Multicast group address for the tick broadcast
	MulticastAddr string

	// Publisher address for recovery requests (subscriber side)
	PublisherAddr string

	// TCP port the publisher listens on for recovery requests
	RecoveryPort int

	// Replay cache capacity in ticks
	RingCapacity int

	// Fast timer period in milliseconds
	TickIntervalMs int

	// Ticks emitted per fast timer firing
	TickBatch int

	// Seed for the synthetic price process
	Seed int64

	// SQLite trade blotter path (subscriber; empty disables)
	BlotterPath string

	// Kafka brokers for the trade tape, comma-separated (subscriber; empty disables)
	TapeBrokers string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	defaultGRPCPort := 50051
	defaultHTTPPort := 8080
	if serviceName == "subscriber" {
		defaultGRPCPort = 50052
		defaultHTTPPort = 8081
	}

	cfg := &Config{
		ServiceName:    serviceName,
		GRPCPort:       getEnvAsInt("PORT_GRPC", defaultGRPCPort),
		HTTPPort:       getEnvAsInt("PORT_HTTP", defaultHTTPPort),
		LogLevel:       getEnvAsString("LOG_LEVEL", "info"),
		MulticastAddr:  getEnvAsString("MULTICAST_ADDR", "224.0.0.1:30001"),
		PublisherAddr:  getEnvAsString("PUBLISHER_ADDR", "127.0.0.1:40001"),
		RecoveryPort:   getEnvAsInt("RECOVERY_PORT", 40001),
		RingCapacity:   getEnvAsInt("RING_CAPACITY", 10000),
		TickIntervalMs: getEnvAsInt("TICK_INTERVAL_MS", 1),
		TickBatch:      getEnvAsInt("TICK_BATCH", 10),
		Seed:           getEnvAsInt64("PRICE_SEED", 42),
		BlotterPath:    getEnvAsString("BLOTTER_PATH", ""),
		TapeBrokers:    getEnvAsString("TAPE_BROKERS", ""),
	}

	return cfg
}

// GRPCAddr returns the gRPC health server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP health server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
