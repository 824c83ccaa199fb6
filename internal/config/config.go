package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	SchemaModeStatic     = "static"
	SchemaModeFile       = "file"
	SchemaModeIntrospect = "introspect"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Query         QueryConfig
	AI            AIConfig
	Schema        SchemaConfig
	Archive       ArchiveConfig
	ObjectStore   ObjectStoreConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string `validate:"required"`
}

type HTTPConfig struct {
	Address      string        `validate:"required"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	IdleTimeout  time.Duration `validate:"gt=0"`
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int `validate:"gte=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type QueryConfig struct {
	Timeout time.Duration `validate:"gt=0"`
	// ExposeDBErrors returns database messages to callers verbatim.
	ExposeDBErrors bool
}

type AIConfig struct {
	Provider    string `validate:"oneof=gemini openai"`
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64       `validate:"gte=0,lte=2"`
	Timeout     time.Duration `validate:"gt=0"`
}

type SchemaConfig struct {
	Mode     string `validate:"oneof=static file introspect"`
	File     string `validate:"required_if=Mode file"`
	Name     string
	CacheTTL time.Duration `validate:"gte=0"`
}

type ArchiveConfig struct {
	Enabled       bool
	BatchSize     int           `validate:"gt=0"`
	FlushInterval time.Duration `validate:"gt=0"`
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	// AskPerSecond of zero disables the /ask limiter.
	AskPerSecond float64 `validate:"gte=0"`
	AskBurst     int     `validate:"gte=0"`
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads a .env file from the working directory when present and
// then the process environment. Variables already set win over the file.
func LoadFromEnv(serviceName string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ASKDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var origins string
	// Unprefixed names are read first so ASKDB_ variables override them.
	err := errors.Join(
		applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name),
		applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address),
		applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout),
		applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout),
		applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout),
		applyString(lookup, "DATABASE_URL", &cfg.Database.URL),
		applyString(lookup, "ASKDB_DATABASE_URL", &cfg.Database.URL),
		applyInt(lookup, "ASKDB_DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns),
		applyInt(lookup, "ASKDB_DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns),
		applyDuration(lookup, "ASKDB_DATABASE_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime),
		applyDuration(lookup, "ASKDB_DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime),
		applyDuration(lookup, "ASKDB_QUERY_TIMEOUT", &cfg.Query.Timeout),
		applyBool(lookup, "ASKDB_EXPOSE_DB_ERRORS", &cfg.Query.ExposeDBErrors),
		applyLower(lookup, "ASKDB_AI_PROVIDER", &cfg.AI.Provider),
		applyString(lookup, "ASKDB_AI_BASE_URL", &cfg.AI.BaseURL),
		applyString(lookup, "GEMINI_API_KEY", &cfg.AI.APIKey),
		applyString(lookup, "ASKDB_AI_API_KEY", &cfg.AI.APIKey),
		applyString(lookup, "MODEL_NAME", &cfg.AI.Model),
		applyString(lookup, "ASKDB_AI_MODEL", &cfg.AI.Model),
		applyFloat(lookup, "ASKDB_AI_TEMPERATURE", &cfg.AI.Temperature),
		applyDuration(lookup, "ASKDB_AI_TIMEOUT", &cfg.AI.Timeout),
		applyLower(lookup, "ASKDB_SCHEMA_MODE", &cfg.Schema.Mode),
		applyString(lookup, "ASKDB_SCHEMA_FILE", &cfg.Schema.File),
		applyString(lookup, "ASKDB_SCHEMA_NAME", &cfg.Schema.Name),
		applyDuration(lookup, "ASKDB_SCHEMA_CACHE_TTL", &cfg.Schema.CacheTTL),
		applyBool(lookup, "ASKDB_ARCHIVE_ENABLED", &cfg.Archive.Enabled),
		applyInt(lookup, "ASKDB_ARCHIVE_BATCH_SIZE", &cfg.Archive.BatchSize),
		applyDuration(lookup, "ASKDB_ARCHIVE_FLUSH_INTERVAL", &cfg.Archive.FlushInterval),
		applyString(lookup, "ASKDB_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint),
		applyString(lookup, "ASKDB_OBJECTSTORE_REGION", &cfg.ObjectStore.Region),
		applyString(lookup, "ASKDB_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket),
		applyString(lookup, "ASKDB_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID),
		applyString(lookup, "ASKDB_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey),
		applyBool(lookup, "ASKDB_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL),
		applyString(lookup, "ASKDB_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix),
		applyBool(lookup, "ASKDB_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket),
		applyString(lookup, "ASKDB_CORS_ALLOWED_ORIGINS", &origins),
		applyFloat(lookup, "ASKDB_ASK_RATE_LIMIT", &cfg.RateLimit.AskPerSecond),
		applyInt(lookup, "ASKDB_ASK_RATE_BURST", &cfg.RateLimit.AskBurst),
		applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON),
		applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel),
		applyBool(lookup, "ASKDB_AUTH_REQUIRED", &cfg.Auth.Required),
		applyString(lookup, "ASKDB_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys),
	)
	if err != nil {
		return Config{}, err
	}
	if _, ok := lookup("ASKDB_CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}

	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultBaseURL(cfg.AI.Provider)
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModel(cfg.AI.Provider)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireDatabase reports whether a database URL is configured.
func (c Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("database url is required: set ASKDB_DATABASE_URL or DATABASE_URL")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askdb-api"},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Query: QueryConfig{
			Timeout:        15 * time.Second,
			ExposeDBErrors: true,
		},
		AI: AIConfig{
			Provider:    ProviderGemini,
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
		Schema: SchemaConfig{
			Mode:     SchemaModeStatic,
			CacheTTL: 5 * time.Minute,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "askdb",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			AskPerSecond: 2,
			AskBurst:     5,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.RateLimit.AskPerSecond = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Query.ExposeDBErrors = false
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func defaultBaseURL(provider string) string {
	if provider == ProviderOpenAI {
		return "https://api.openai.com"
	}
	return "https://generativelanguage.googleapis.com"
}

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-5"
	}
	return "models/gemini-2.5-flash"
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyLower(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.ToLower(strings.TrimSpace(raw))
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

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
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
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
