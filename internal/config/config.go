package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration. Values come from environment
// variables; a local .env is loaded in main via godotenv.
type Config struct {
	Port string

	// External conversational-AI provider
	ProviderBaseURL string
	ProviderAPIKey  string

	// Backing usage service
	UsageBaseURL string

	// Carrier credentials for number hint search (optional)
	TwilioAccountSID string
	TwilioAuthToken  string

	// Redis cache
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Background ingestion sweep. 0 disables it; status then advances only
	// on explicit refresh reads.
	KBPollIntervalSeconds int
}

// LoadFromEnv builds the configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		ProviderBaseURL:  getEnvOrDefault("PROVIDER_BASE_URL", "https://api.agent-provider.example.com"),
		ProviderAPIKey:   os.Getenv("PROVIDER_API_KEY"),
		UsageBaseURL:     os.Getenv("USAGE_BASE_URL"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		RedisHost:        getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:        getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvIntOrDefault("REDIS_DB", 0),

		KBPollIntervalSeconds: getEnvIntOrDefault("KB_POLL_INTERVAL_SECONDS", 0),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultValue
}
