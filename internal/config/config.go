// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// GraphConfig holds the directory connection settings.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string // override for sovereign clouds, empty means the public endpoint

	PageSize          int     // collection page size (default 100)
	RequestsPerSecond float64 // client-side throttle (default 10)
	Burst             int     // throttle burst capacity (default 20)
}

// Validate checks that a client-credential login is possible. The CLI can
// run on a device-code login instead, so this is only enforced where
// unattended auth is required.
func (g *GraphConfig) Validate() error {
	if g.TenantID == "" {
		return fmt.Errorf("GROUPSYNC_TENANT_ID must be set")
	}
	if g.ClientID == "" {
		return fmt.Errorf("GROUPSYNC_CLIENT_ID must be set")
	}
	if g.ClientSecret == "" {
		return fmt.Errorf("GROUPSYNC_CLIENT_SECRET must be set")
	}
	return nil
}

// Config holds the configuration for the sync daemon and CLI.
type Config struct {
	Graph GraphConfig

	HistoryDBPath string // path to the SQLite run-history file
	ListenAddr    string // HTTP listen address for the status API (default ":8080")
	JobsFile      string // YAML file with scheduled sync jobs (optional)
	LogLevel      string // log level: debug, info, warn, error (default "info")
	Env           string // environment: "development" (default) or "production"

	// Rate limiting for the status API.
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// JWTSecret guards the status API with HS256 bearer tokens. Empty
	// leaves the API open, which is refused in production.
	JWTSecret string

	// ReportContainerURL is an Azure Blob container URL; when set, every
	// run report is also uploaded there as JSON.
	ReportContainerURL string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables. Directory
// credentials are not validated here — the CLI can authenticate
// interactively — but production mode refuses insecure defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Graph: GraphConfig{
			TenantID:     os.Getenv("GROUPSYNC_TENANT_ID"),
			ClientID:     os.Getenv("GROUPSYNC_CLIENT_ID"),
			ClientSecret: os.Getenv("GROUPSYNC_CLIENT_SECRET"),
			BaseURL:      os.Getenv("GRAPH_BASE_URL"),
		},
		HistoryDBPath:      os.Getenv("HISTORY_DB_PATH"),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		JobsFile:           os.Getenv("SYNC_JOBS_FILE"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		ReportContainerURL: os.Getenv("REPORT_CONTAINER_URL"),
	}

	if v := os.Getenv("GRAPH_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Graph.PageSize = n
		}
	}
	if v := os.Getenv("GRAPH_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Graph.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("GRAPH_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Graph.Burst = n
		}
	}

	// Rate limiting for the status API.
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = "groupsync_history.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Graph.PageSize == 0 {
		cfg.Graph.PageSize = 100
	}
	if cfg.Graph.RequestsPerSecond == 0 {
		cfg.Graph.RequestsPerSecond = 10
	}
	if cfg.Graph.Burst == 0 {
		cfg.Graph.Burst = 20
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET not set — the status API accepts unauthenticated requests")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
