package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendProxy    = "proxy"
)

type Config struct {
	DBPath    string
	StatePath string
	OutputDir string

	Backend     string
	DatabaseURL string

	ProxyBaseURL      string
	ProxyTimeoutMs    int
	ProxyAddr         string
	ProxyRateLimitRPS int

	TemplateSavePolicy string

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "claims.db")),
		StatePath: getEnv("STATE_PATH", filepath.Join(cwd, "data", "client-state.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		Backend:     strings.ToLower(strings.TrimSpace(getEnv("BACKEND", BackendSQLite))),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		ProxyBaseURL:      getEnv("PROXY_BASE_URL", "http://localhost:8080"),
		ProxyTimeoutMs:    getEnvInt("PROXY_TIMEOUT_MS", 15000),
		ProxyAddr:         getEnv("PROXY_ADDR", ":8080"),
		ProxyRateLimitRPS: getEnvInt("PROXY_RATE_LIMIT_RPS", 20),

		TemplateSavePolicy: strings.ToLower(strings.TrimSpace(getEnv("TEMPLATE_SAVE_POLICY", "append"))),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	switch cfg.Backend {
	case BackendSQLite, BackendPostgres, BackendProxy:
	default:
		return Config{}, fmt.Errorf("unsupported BACKEND: %s", cfg.Backend)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
