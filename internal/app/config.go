package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lasttime-backend/internal/data/db"
	"github.com/yungbote/lasttime-backend/internal/platform/envutil"
	"github.com/yungbote/lasttime-backend/internal/services"
)

const defaultConfigFile = "configs/config.yaml"

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	GinMode        string        `yaml:"gin_mode"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
	CORSOrigins    []string      `yaml:"cors_allow_origins"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	GoogleClientID string        `yaml:"google_client_id"`
	AppleTeamID    string        `yaml:"apple_team_id"`
	AppleBundleID  string        `yaml:"apple_bundle_id"`
	AppleKeyID     string        `yaml:"apple_key_id"`
	ApplePublicKey string        `yaml:"apple_public_key"`
	AppleIssuer    string        `yaml:"apple_issuer"`
	AppleJWKSURL   string        `yaml:"apple_jwks_url"`
	AppleJWKSTTL   time.Duration `yaml:"apple_jwks_ttl"`
}

type RateLimitConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Window    time.Duration  `yaml:"window"`
	Default   int            `yaml:"default"`
	Budgets   map[string]int `yaml:"budgets"`
	KeyPrefix string         `yaml:"redis_key_prefix"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Mode     string `yaml:"mode"`
	Level    string `yaml:"level"`
	Redact   bool   `yaml:"redaction_enabled"`
	HashSalt string `yaml:"hash_salt"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Otel      OtelConfig      `yaml:"otel"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8080",
			GinMode:       "release",
			ShutdownGrace: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "lasttime",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			AppleJWKSURL: services.DefaultAppleJWKSURL,
			AppleJWKSTTL: 6 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Window:    services.DefaultRateLimitWindow,
			Budgets:   services.DefaultBudgets(),
			KeyPrefix: services.DefaultRedisKeyPrefix,
		},
		Log: LogConfig{
			Mode:   "development",
			Redact: true,
		},
		Otel: OtelConfig{
			ServiceName: "lasttime",
			SampleRatio: 0.1,
		},
	}
}

// LoadConfig layers defaults, then the YAML file at path (CONFIG_FILE, or
// configs/config.yaml when present), then environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = envutil.String("CONFIG_FILE", "")
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigFile
	}
	if err := overlayFile(&cfg, path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return Config{}, err
		}
	}

	overlayEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	budgets := cfg.RateLimit.Budgets
	cfg.RateLimit.Budgets = nil
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	// file budgets override individual buckets, not the whole table
	for k, v := range cfg.RateLimit.Budgets {
		budgets[k] = v
	}
	cfg.RateLimit.Budgets = budgets
	return nil
}

func overlayEnv(cfg *Config) {
	s := &cfg.Server
	if port := envutil.String("PORT", ""); port != "" {
		s.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	s.Addr = envutil.String("SERVER_ADDR", s.Addr)
	s.GinMode = envutil.String("GIN_MODE", s.GinMode)
	s.TrustedProxies = envutil.List("TRUSTED_PROXIES", s.TrustedProxies)
	s.CORSOrigins = envutil.List("CORS_ALLOW_ORIGINS", s.CORSOrigins)
	s.ShutdownGrace = envutil.Duration("SHUTDOWN_GRACE", s.ShutdownGrace)

	d := &cfg.Database
	d.URL = envutil.String("DATABASE_URL", d.URL)
	d.Host = envutil.String("POSTGRES_HOST", d.Host)
	d.Port = envutil.String("POSTGRES_PORT", d.Port)
	d.User = envutil.String("POSTGRES_USER", d.User)
	d.Password = envutil.String("POSTGRES_PASSWORD", d.Password)
	d.Name = envutil.String("POSTGRES_NAME", d.Name)
	d.SSLMode = envutil.String("POSTGRES_SSLMODE", d.SSLMode)
	d.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = envutil.Duration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)

	a := &cfg.Auth
	a.GoogleClientID = envutil.String("GOOGLE_CLIENT_ID", a.GoogleClientID)
	a.AppleTeamID = envutil.String("APPLE_TEAM_ID", a.AppleTeamID)
	a.AppleBundleID = envutil.String("APPLE_BUNDLE_ID", a.AppleBundleID)
	a.AppleKeyID = envutil.String("APPLE_KEY_ID", a.AppleKeyID)
	a.ApplePublicKey = envutil.String("APPLE_PUBLIC_KEY", a.ApplePublicKey)
	a.AppleIssuer = envutil.String("APPLE_ISSUER", a.AppleIssuer)
	a.AppleJWKSURL = envutil.String("APPLE_JWKS_URL", a.AppleJWKSURL)
	a.AppleJWKSTTL = envutil.Duration("APPLE_JWKS_TTL", a.AppleJWKSTTL)

	rl := &cfg.RateLimit
	rl.Enabled = envutil.Bool("RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Window = envutil.Duration("RATE_LIMIT_WINDOW", rl.Window)
	rl.Default = envutil.Int("RATE_LIMIT_DEFAULT", rl.Default)
	rl.KeyPrefix = envutil.String("REDIS_KEY_PREFIX", rl.KeyPrefix)
	if rl.Default > 0 {
		rl.Budgets[services.BucketDefault] = rl.Default
	}

	r := &cfg.Redis
	r.Addr = envutil.String("REDIS_ADDR", r.Addr)
	r.Password = envutil.String("REDIS_PASSWORD", r.Password)
	r.DB = envutil.Int("REDIS_DB", r.DB)

	l := &cfg.Log
	l.Mode = envutil.String("LOG_MODE", l.Mode)
	l.Level = envutil.String("LOG_LEVEL", l.Level)
	l.Redact = envutil.Bool("LOG_REDACTION_ENABLED", l.Redact)
	l.HashSalt = envutil.String("LOG_HASH_SALT", l.HashSalt)

	o := &cfg.Otel
	o.Enabled = envutil.Bool("OTEL_ENABLED", o.Enabled)
	o.ServiceName = envutil.String("OTEL_SERVICE_NAME", o.ServiceName)
	o.Environment = envutil.String("OTEL_ENVIRONMENT", o.Environment)
	o.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", o.Endpoint)
	o.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", o.Headers)
	o.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", o.Insecure)
	o.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", o.SampleRatio)
}

func (c Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is empty")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	for bucket, n := range c.RateLimit.Budgets {
		if n <= 0 {
			return fmt.Errorf("rate limit budget for %q must be positive", bucket)
		}
	}
	return nil
}

func (c DatabaseConfig) toDB() db.Config {
	return db.Config{
		URL:             c.URL,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Name:            c.Name,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// otelHeaders parses "k1=v1,k2=v2".
func otelHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
