package config

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Authorization AuthorizationConfig
	Cache         CacheConfig
	Relation      RelationConfig
	Sophia        SophiaConfig
	Observe       ObserveConfig
	Server        ServerConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

// SophiaConfig specifies access to the Sophia school-management API.
type SophiaConfig struct {
	APIURL string // internal only: overrides the derived base URL for tests

	Tenant   string `env:"SOPHIA_TENANT, required"`
	User     string `env:"SOPHIA_USER, required"`
	Password string `env:"SOPHIA_PASSWORD"`

	// PasswordSecretARN optionally sources the API password from AWS
	// Secrets Manager instead of the environment.
	PasswordSecretARN string `env:"SOPHIA_PASSWORD_SECRET_ARN"`

	Hostname string `env:"SOPHIA_API_HOSTNAME, default=portal.sophia.com.br"`

	// TokenTTLMinutes is the reuse window for an issued token. Kept shorter
	// than the upstream session so a token never expires mid-request.
	TokenTTLMinutes     int `env:"SOPHIA_TOKEN_TTL_MINS, default=29"`
	APITimeoutSeconds   int `env:"SOPHIA_API_TIMEOUT_SECS, default=10"`
	PhotoTimeoutSeconds int `env:"SOPHIA_PHOTO_TIMEOUT_SECS, default=5"`
	PhotoWorkers        int `env:"SOPHIA_PHOTO_WORKERS, default=10"`
}

// CacheConfig specifies the search result cache.
type CacheConfig struct {
	// Type selects the cache implementation: "memory" (default) or "redis"
	Type string `env:"CACHE_TYPE, default=memory"`

	ResultTTLSeconds int `env:"CACHE_RESULT_TTL_SECS, default=60"`
	MaxEntries       int `env:"CACHE_MAX_ENTRIES, default=10000"`

	Redis RedisConfig
}

// RedisConfig specifies distributed cache configuration.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	Address  string `env:"REDIS_ADDRESS"`
	Username string `env:"REDIS_USERNAME"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// RelationConfig controls how guardian relationship labels are classified.
type RelationConfig struct {
	// ConfigPath points to a YAML document listing parent relationship
	// labels. Empty uses the compiled-in defaults.
	ConfigPath             string `env:"RELATION_CONFIG_PATH"`
	RefreshIntervalSeconds int    `env:"RELATION_REFRESH_INTERVAL_SECS, default=300"`
}

// AuthorizationConfig specifies staff JWT validation. When IssuerURL and
// ConfigurationStatic are both empty, authorization is disabled.
type AuthorizationConfig struct {
	Audience            string `env:"JWT_AUDIENCE, default=portaria-bridge"`
	IssuerURL           string `env:"JWT_ISSUER_URL"`
	ConfigurationStatic string `env:"JWT_JWKS_STATIC"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=portaria-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	// .env is a development convenience: absence is not an error
	_ = godotenv.Load()

	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Cache.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	err = cfg.Sophia.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid sophia configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.Type != "memory" && c.Type != "redis" {
		return fmt.Errorf("unknown cache type %q", c.Type)
	}

	if c.Type == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("REDIS_ADDRESS required when CACHE_TYPE=redis")
	}

	return nil
}

// Validate checks that the Sophia configuration is valid.
func (c *SophiaConfig) Validate() error {
	if c.Password == "" && c.PasswordSecretARN == "" {
		return fmt.Errorf("one of SOPHIA_PASSWORD or SOPHIA_PASSWORD_SECRET_ARN is required")
	}

	return nil
}

// BaseURL derives the tenant-scoped API base URL, unless an explicit
// override is present (testing).
func (c *SophiaConfig) BaseURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return fmt.Sprintf("https://%s/SophiAWebApi/%s", c.Hostname, c.Tenant)
}
