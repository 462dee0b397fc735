package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment configuration values for the application.
// These values are loaded from a .env file at startup.
type Config struct {
	// ServerPort is the port the HTTP server listens on
	ServerPort string

	// AdminPassword is the shared secret checked by the admin auth endpoint
	AdminPassword string

	// HistoryFile is the path of the durable chat history snapshot
	HistoryFile string

	// SnapshotInterval is how often the history snapshot is rewritten
	SnapshotInterval time.Duration

	// HistoryLimit is the maximum number of retained messages per user
	HistoryLimit int

	// TypingIdleTimeout is how long a customer may stay silent before
	// their typing indicator expires automatically
	TypingIdleTimeout time.Duration
}

// Load reads environment variables and returns a populated Config struct.
// It will load from a .env file if present, then read from environment variables.
// Falls back to sensible defaults if values are not set.
func Load() *Config {
	// Attempt to load .env file - not an error if it doesn't exist
	// as we may be running in production with real environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		ServerPort:        getEnv("PORT", "3000"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "nvi_admin_2024"),
		HistoryFile:       getEnv("CHAT_HISTORY_FILE", "chat-history.json"),
		SnapshotInterval:  time.Duration(getEnvInt("SNAPSHOT_INTERVAL_SECONDS", 30)) * time.Second,
		HistoryLimit:      getEnvInt("HISTORY_LIMIT", 100),
		TypingIdleTimeout: time.Duration(getEnvInt("TYPING_IDLE_MS", 1000)) * time.Millisecond,
	}

	if config.AdminPassword == "" {
		log.Println("WARNING: ADMIN_PASSWORD is not set")
	}

	return config
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
