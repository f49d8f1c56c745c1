package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	TenantDB      TenantDBConfig
	Tenants       TenantsConfig
	Cache         CacheConfig
	AI            AIConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TenantDBConfig holds the shared connection parameters for the tenant
// Postgres cluster. The database name itself comes from the tenant directory.
type TenantDBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// TenantsConfig carries the static tenant directory specification:
// comma-separated "name:secret:database" entries.
type TenantsConfig struct {
	Static string
}

type CacheConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	TTLDays       int
}

type AIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TEXT2SQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TEXT2SQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "TEXT2SQL_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TEXT2SQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TEXT2SQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TEXT2SQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_DB_HOST", &cfg.TenantDB.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TEXT2SQL_DB_PORT", &cfg.TenantDB.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_DB_USER", &cfg.TenantDB.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_DB_PASSWORD", &cfg.TenantDB.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_DB_SSLMODE", &cfg.TenantDB.SSLMode); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TEXT2SQL_DB_CONNECT_TIMEOUT", &cfg.TenantDB.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_TENANTS", &cfg.Tenants.Static); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TEXT2SQL_CACHE_ENABLED", &cfg.Cache.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_CACHE_REDIS_ADDR", &cfg.Cache.RedisAddr); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_CACHE_REDIS_PASSWORD", &cfg.Cache.RedisPassword); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TEXT2SQL_CACHE_REDIS_DB", &cfg.Cache.RedisDB); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_CACHE_KEY_PREFIX", &cfg.Cache.KeyPrefix); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TEXT2SQL_CACHE_TTL_DAYS", &cfg.Cache.TTLDays); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TEXT2SQL_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TEXT2SQL_AI_MAX_TOKENS", &cfg.AI.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TEXT2SQL_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TEXT2SQL_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TEXT2SQL_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Cache.TTLDays <= 0 {
		return Config{}, fmt.Errorf("cache ttl days must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "text2sql-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		TenantDB: TenantDBConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			SSLMode:        "disable",
			ConnectTimeout: 5 * time.Second,
		},
		Tenants: TenantsConfig{
			Static: "sales:sales123:sales_db,marketing:marketing123:marketing_db,operations:operations123:operations_db",
		},
		Cache: CacheConfig{
			Enabled:   true,
			RedisAddr: "127.0.0.1:6379",
			RedisDB:   0,
			KeyPrefix: "text2sql:",
			TTLDays:   30,
		},
		AI: AIConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Cache.Enabled = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.TenantDB.SSLMode = "require"
		cfg.Tenants.Static = ""
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
