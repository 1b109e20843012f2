package chaos

import (
	"os"
	"strconv"
)

// Config holds chaos configuration
type Config struct {
	Enabled   bool
	DropOneIn int
	Seed      int64
}

// LoadConfig loads chaos configuration from environment variables. The
// simulated feed loss is on by default at 1 in 2000 emissions.
func LoadConfig() *Config {
	return &Config{
		Enabled:   getEnvAsBool("CHAOS_ENABLED", true),
		DropOneIn: getEnvAsInt("CHAOS_DROP_ONE_IN", 2000),
		Seed:      getEnvAsInt64("CHAOS_SEED", 1),
	}
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
