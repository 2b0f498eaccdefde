package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultShutdownTimeout = 10 * time.Second
)

// Config keeps the runtime configuration for the service.
type Config struct {
	HTTP            HTTPConfig
	ShutdownTimeout time.Duration
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	host := getString("HTTP_HOST", defaultHTTPHost)

	port, err := getInt("PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse PORT: %w", err)
	}

	shutdownTimeout := defaultShutdownTimeout
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		parsed, err := time.ParseDuration(envTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
		}
		if parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	return &Config{
		HTTP:            HTTPConfig{Host: host, Port: port},
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}
