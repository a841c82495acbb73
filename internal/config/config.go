package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bot.
type Config struct {
	KeysPath        string
	IDLogPath       string
	ActivityLogPath string
	AuthorPolicy    string
	PostInterval    time.Duration
	PostForReal     bool

	TemporalHostPort  string
	TemporalNamespace string
	TaskQueue         string
}

// Load loads configuration from environment variables.
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		KeysPath:          getEnv("CRX_KEYS_PATH", "CRX_keys.txt"),
		IDLogPath:         getEnv("CRX_ID_LOG_PATH", "id_log.txt"),
		ActivityLogPath:   getEnv("CRX_ACTIVITY_LOG_PATH", "activity_log.txt"),
		AuthorPolicy:      getEnv("CRX_AUTHOR_POLICY", "last"),
		PostInterval:      getDuration("CRX_POST_INTERVAL", 30*time.Second),
		PostForReal:       os.Getenv("CRX_POST_FOR_REAL") == "true",
		TemporalHostPort:  getEnv("TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace: getEnv("TEMPORAL_NAMESPACE", "default"),
		TaskQueue:         getEnv("TEMPORAL_TASK_QUEUE", "crx-task-queue"),
	}

	return config
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses an environment variable as a duration, falling back on
// the default when unset or malformed.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, value, err)
		return defaultValue
	}
	return d
}

// Keys is the credential bundle read from the key file: five newline
// delimited secrets in fixed order.
type Keys struct {
	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string
	ChemrxivToken       string
}

// LoadKeys reads the credential bundle at path. A missing or malformed file
// is a fatal startup condition for callers.
func LoadKeys(path string) (*Keys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) != 5 {
		return nil, fmt.Errorf("key file %s must hold exactly 5 secrets, found %d", path, len(lines))
	}

	return &Keys{
		TwitterAPIKey:       lines[0],
		TwitterAPISecret:    lines[1],
		TwitterAccessToken:  lines[2],
		TwitterAccessSecret: lines[3],
		ChemrxivToken:       lines[4],
	}, nil
}
