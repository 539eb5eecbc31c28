package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL       string
	RequestTimeout   time.Duration
	TokenFile        string
	TokenDatabaseURL string
	Port             string
	AllowedOrigins   []string
	LogLevel         slog.Level
	MapsAPIKey       string
}

// Load reads the configuration from the environment. A .env file in the
// working directory, if present, is applied first without overriding
// variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	baseURL := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000/api/v1"), "/")
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL is not an absolute URL: %q", baseURL)
	}

	timeout := 10 * time.Second
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", d)
		}
		timeout = d
	}

	tokenFile := os.Getenv("TOKEN_FILE")
	if tokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("TOKEN_FILE not set and no home directory: %w", err)
		}
		tokenFile = filepath.Join(home, ".firewatch", "token")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	origins := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string
	if origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	} else {
		allowedOrigins = []string{"http://localhost:5173"}
	}

	return &Config{
		APIBaseURL:       baseURL,
		RequestTimeout:   timeout,
		TokenFile:        tokenFile,
		TokenDatabaseURL: os.Getenv("TOKEN_DATABASE_URL"),
		Port:             getEnv("PORT", "8090"),
		AllowedOrigins:   allowedOrigins,
		LogLevel:         level,
		MapsAPIKey:       os.Getenv("MAPS_API_KEY"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
