// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App          AppConfig          `koanf:"app"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Auth         AuthConfig         `koanf:"auth"`
	Webhook      WebhookConfig      `koanf:"webhook"`
	Linking      LinkingConfig      `koanf:"linking"`
	Subscription SubscriptionConfig `koanf:"subscription"`
	Billing      BillingConfig      `koanf:"billing"`
	Instagram    InstagramConfig    `koanf:"instagram"`
	Usage        UsageConfig        `koanf:"usage"`
	RateLimit    RateLimitConfig    `koanf:"rate_limit"`
	CORS         CORSConfig         `koanf:"cors"`
	Log          LogConfig          `koanf:"log"`
	Otel         OtelConfig         `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// AuthConfig points at the identity provider's signing key. Exactly one of
// PublicKeyPath or JWKSURL must be set.
type AuthConfig struct {
	PublicKeyPath string        `koanf:"public_key_path"`
	JWKSURL       string        `koanf:"jwks_url"`
	JWKSRefresh   time.Duration `koanf:"jwks_refresh"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
}

type WebhookConfig struct {
	AppSecret      string        `koanf:"app_secret"`
	VerifyToken    string        `koanf:"verify_token"`
	OwnPlatformID  string        `koanf:"own_platform_id"`
	AllowUnsigned  bool          `koanf:"allow_unsigned"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	HandlerTimeout time.Duration `koanf:"handler_timeout"`
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
}

type LinkingConfig struct {
	CodeLength   int           `koanf:"code_length"`
	CodeTTL      time.Duration `koanf:"code_ttl"`
	RequiredPlan string        `koanf:"required_plan"`
}

type SubscriptionConfig struct {
	CacheTTL        time.Duration   `koanf:"cache_ttl"`
	StaleAfter      time.Duration   `koanf:"stale_after"`
	RetryDelays     []time.Duration `koanf:"retry_delays"`
	ProviderTimeout time.Duration   `koanf:"provider_timeout"`
	RecheckSpec     string          `koanf:"recheck_spec"`
	RecheckWindow   time.Duration   `koanf:"recheck_window"`
	RecheckBatch    int             `koanf:"recheck_batch"`
}

type BillingConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	// PlanMap maps provider entitlement identifiers to internal plan names.
	PlanMap map[string]string `koanf:"plan_map"`
	Timeout time.Duration     `koanf:"timeout"`
}

type InstagramConfig struct {
	GraphBaseURL string        `koanf:"graph_base_url"`
	APIVersion   string        `koanf:"api_version"`
	AccessToken  string        `koanf:"access_token"`
	Timeout      time.Duration `koanf:"timeout"`
	IngestStream string        `koanf:"ingest_stream"`
}

type UsageConfig struct {
	// Limits is the monthly share allowance per plan; a negative value
	// means unlimited.
	Limits map[string]int `koanf:"limits"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		k := koanf.New(".")

		if err := loadDefaults(k); err != nil {
			loadErr = fmt.Errorf("load defaults: %w", err)
			return
		}

		if configPath != "" {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				loadErr = fmt.Errorf("load config file: %w", err)
				return
			}
		}

		if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
			loadErr = fmt.Errorf("load env vars: %w", err)
			return
		}

		cfg = &Config{}
		if err := k.Unmarshal("", cfg); err != nil {
			loadErr = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		if err := validate(cfg); err != nil {
			loadErr = fmt.Errorf("validate config: %w", err)
			return
		}
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "socialsync",
		"app.version": "1.0.0",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       false,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"auth.issuer":       "",
		"auth.audience":     "authenticated",
		"auth.jwks_refresh": "1h",

		"webhook.allow_unsigned":  false,
		"webhook.max_body_bytes":  1 << 20,
		"webhook.handler_timeout": "30s",
		"webhook.idempotency_ttl": "48h",

		"linking.code_length":   6,
		"linking.code_ttl":      "10m",
		"linking.required_plan": "plus",

		"subscription.cache_ttl":        "5m",
		"subscription.stale_after":      "1h",
		"subscription.retry_delays":     []string{"2s", "6s"},
		"subscription.provider_timeout": "10s",
		"subscription.recheck_spec":     "@every 15m",
		"subscription.recheck_window":   "24h",
		"subscription.recheck_batch":    100,

		"billing.base_url":      "https://api.revenuecat.com/v1",
		"billing.timeout":       "10s",
		"billing.plan_map.plus": "plus",
		"billing.plan_map.pro":  "pro",

		"instagram.graph_base_url": "https://graph.instagram.com",
		"instagram.api_version":    "v21.0",
		"instagram.timeout":        "10s",
		"instagram.ingest_stream":  "media:ingest",

		"usage.limits.free": 5,
		"usage.limits.plus": 50,
		"usage.limits.pro":  -1,

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "socialsync",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                  "database.url",
	"DATABASE_AUTO_MIGRATE":         "database.auto_migrate",
	"REDIS_URL":                     "redis.url",
	"ENVIRONMENT":                   "app.environment",
	"HOST":                          "server.host",
	"PORT":                          "server.port",
	"LOG_LEVEL":                     "log.level",
	"LOG_FORMAT":                    "log.format",
	"AUTH_PUBLIC_KEY_PATH":          "auth.public_key_path",
	"AUTH_JWKS_URL":                 "auth.jwks_url",
	"AUTH_ISSUER":                   "auth.issuer",
	"AUTH_AUDIENCE":                 "auth.audience",
	"WEBHOOK_APP_SECRET":            "webhook.app_secret",
	"WEBHOOK_VERIFY_TOKEN":          "webhook.verify_token",
	"WEBHOOK_OWN_PLATFORM_ID":       "webhook.own_platform_id",
	"WEBHOOK_ALLOW_UNSIGNED":        "webhook.allow_unsigned",
	"WEBHOOK_MAX_BODY_BYTES":        "webhook.max_body_bytes",
	"LINKING_CODE_LENGTH":           "linking.code_length",
	"LINKING_CODE_TTL":              "linking.code_ttl",
	"LINKING_REQUIRED_PLAN":         "linking.required_plan",
	"SUBSCRIPTION_CACHE_TTL":        "subscription.cache_ttl",
	"SUBSCRIPTION_STALE_AFTER":      "subscription.stale_after",
	"SUBSCRIPTION_RETRY_DELAYS":     "subscription.retry_delays",
	"SUBSCRIPTION_RECHECK_SPEC":     "subscription.recheck_spec",
	"BILLING_BASE_URL":              "billing.base_url",
	"BILLING_API_KEY":               "billing.api_key",
	"INSTAGRAM_GRAPH_BASE_URL":      "instagram.graph_base_url",
	"INSTAGRAM_API_VERSION":         "instagram.api_version",
	"INSTAGRAM_ACCESS_TOKEN":        "instagram.access_token",
	"RATE_LIMIT_REQUESTS":           "rate_limit.requests",
	"RATE_LIMIT_WINDOW":             "rate_limit.window",
	"RATE_LIMIT_BURST":              "rate_limit.burst",
	"OTEL_ENDPOINT":                 "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":   "otel.endpoint",
	"OTEL_SERVICE_NAME":             "otel.service_name",
	"OTEL_ENABLED":                  "otel.enabled",
	"OTEL_INSECURE":                 "otel.insecure",
	"OTEL_SAMPLE_RATE":              "otel.sample_rate",
	"SUBSCRIPTION_PROVIDER_TIMEOUT": "subscription.provider_timeout",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.PublicKeyPath == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("one of AUTH_PUBLIC_KEY_PATH or AUTH_JWKS_URL is required")
	}

	if !c.IsProduction() {
		if _, ok := nonProductionEnvironments[c.environment()]; !ok {
			return fmt.Errorf(
				"ENVIRONMENT must be one of production, development, test, staging",
			)
		}
	}

	if c.Webhook.VerifyToken == "" {
		return fmt.Errorf("WEBHOOK_VERIFY_TOKEN is required")
	}

	if c.Webhook.OwnPlatformID == "" {
		return fmt.Errorf("WEBHOOK_OWN_PLATFORM_ID is required")
	}

	if c.Webhook.AppSecret == "" && !c.SignatureBypassAllowed() {
		return fmt.Errorf("WEBHOOK_APP_SECRET is required unless unsigned deliveries are allowed")
	}

	if c.Webhook.MaxBodyBytes <= 0 {
		return fmt.Errorf("webhook.max_body_bytes must be positive")
	}

	if c.Linking.CodeLength < 6 || c.Linking.CodeLength > 8 {
		return fmt.Errorf("linking.code_length must be between 6 and 8")
	}

	if c.Linking.CodeTTL <= 0 {
		return fmt.Errorf("linking.code_ttl must be positive")
	}

	if len(c.Subscription.RetryDelays) > 2 {
		return fmt.Errorf("subscription.retry_delays allows at most 2 entries")
	}

	for i := 1; i < len(c.Subscription.RetryDelays); i++ {
		if c.Subscription.RetryDelays[i] <= c.Subscription.RetryDelays[i-1] {
			return fmt.Errorf("subscription.retry_delays must be increasing")
		}
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.IsProduction() {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}

		if c.Webhook.AllowUnsigned {
			return fmt.Errorf("WEBHOOK_ALLOW_UNSIGNED cannot be enabled in production")
		}

		if c.Webhook.AppSecret == "" {
			return fmt.Errorf("WEBHOOK_APP_SECRET is required in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

var nonProductionEnvironments = map[string]struct{}{
	"development": {},
	"test":        {},
	"staging":     {},
}

func (c *Config) environment() string {
	return strings.ToLower(strings.TrimSpace(c.App.Environment))
}

func (c *Config) IsProduction() bool {
	return c.environment() == "production"
}

// SignatureBypassAllowed reports whether unsigned webhook deliveries may be
// accepted. The flag is honored only for an environment explicitly named as
// non-production; an empty or unrecognized environment never bypasses.
func (c *Config) SignatureBypassAllowed() bool {
	if !c.Webhook.AllowUnsigned {
		return false
	}
	_, ok := nonProductionEnvironments[c.environment()]
	return ok
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
