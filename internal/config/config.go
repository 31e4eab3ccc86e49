package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken       string
	APIUsername       string
	AllowPrivateClone bool
	RemoteHost        string

	// Synchronization
	CatchUpCommits int
	RepoDir        string
	GitBinary      string
	LeaseTTL       time.Duration

	// Storage
	StorageType string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()
	return fromEnv(), nil
}

// LoadFile loads the configuration from the given env file, then the environment
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, &ConfigError{Field: "config", Message: err.Error()}
	}
	return fromEnv(), nil
}

func fromEnv() *Config {
	return &Config{
		GitHubToken:       getEnv("GITHUB_TOKEN", ""),
		APIUsername:       getEnv("GITHUB_API_USERNAME", ""),
		AllowPrivateClone: getEnvBool("CODE_REVIEW_ALLOW_PRIVATE_CLONE", false),
		RemoteHost:        getEnv("CODE_REVIEW_REMOTE_HOST", "github.com"),
		CatchUpCommits:    getEnvInt("CODE_REVIEW_CATCH_UP_COMMITS", 10),
		RepoDir:           getEnv("CODE_REVIEW_REPO_DIR", "./tmp/code-review-repo"),
		GitBinary:         getEnv("GIT_BINARY", "git"),
		LeaseTTL:          getEnvDuration("SYNC_LEASE_TTL", 10*time.Minute),
		StorageType:       getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:        getEnv("SQLITE_PATH", "./review-sync.db"),
		PostgresURL:       getEnv("POSTGRES_URL", ""),
		APIPort:           getEnv("API_PORT", "8080"),
		APIHost:           getEnv("API_HOST", "localhost"),
		APIEndpoint:       getEnv("API_ENDPOINT", "http://localhost:8080"),
	}
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// EffectiveCatchUpCommits returns the catch-up count with its minimum of 1 applied
func (c *Config) EffectiveCatchUpCommits() int {
	return max(c.CatchUpCommits, 1)
}

// PrivateCloneEnabled reports whether clones should embed the API token
func (c *Config) PrivateCloneEnabled() bool {
	return c.AllowPrivateClone && c.APIUsername != "" && c.GitHubToken != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StorageType != "sqlite" && c.StorageType != "postgres" {
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.RepoDir == "" {
		return &ConfigError{Field: "CODE_REVIEW_REPO_DIR", Message: "repository directory is required"}
	}
	if c.LeaseTTL <= 0 {
		return &ConfigError{Field: "SYNC_LEASE_TTL", Message: "must be a positive duration"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
