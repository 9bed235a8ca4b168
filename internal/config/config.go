package config

import (
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/aipowereddevteam/auth2026/pkg/config"
	"github.com/aipowereddevteam/auth2026/pkg/database"
	"github.com/aipowereddevteam/auth2026/pkg/middleware"
	"github.com/aipowereddevteam/auth2026/pkg/netutil"
	"github.com/aipowereddevteam/auth2026/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"authd"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRES_USER" envDefault:"auth"`
	PostgresPass         string `env:"POSTGRES_PASSWORD" envDefault:"auth_secret"`
	PostgresDB           string `env:"AUTH_DB_NAME" envDefault:"auth"`
	PostgresSSL          string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns           int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns           int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	SlowQueryThresholdMs int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis holds sessions, revoked tokens and MFA challenges.
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka carries audit entries. Empty means audit goes to the log.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"authd"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// MFA
	MFAIssuer       string        `env:"MFA_ISSUER" envDefault:"authd"`
	MFAChallengeTTL time.Duration `env:"MFA_CHALLENGE_TTL" envDefault:"120s"`

	// Networks
	TrustedCIDRs      []string `env:"TRUSTED_CIDRS" envSeparator:"," envDefault:"10.0.0.0/8,127.0.0.1/32,::1/128"`
	TrustedProxies    []string `env:"TRUSTED_PROXIES" envSeparator:","`
	OAuthBrokerCIDRs  []string `env:"OAUTH_BROKER_CIDRS" envSeparator:"," envDefault:"127.0.0.1/32,::1/128"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.1/32,::1/128"`

	// Throttling of the public auth routes.
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"10"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	SecureCookies      bool     `env:"COOKIE_SECURE" envDefault:"true"`

	// Audit
	AuditBufferSize   int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
	AuditWriteTimeout time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"5s"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	trustedNets    []netip.Prefix
	trustedProxies []netip.Prefix
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// Outside development the secret must be set explicitly and be strong.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	if c.JWTAccessExpiry <= 0 || c.JWTRefreshExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive, got access=%s refresh=%s", c.JWTAccessExpiry, c.JWTRefreshExpiry)
	}
	if c.JWTAccessExpiry >= c.JWTRefreshExpiry {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRY (%s) must be shorter than JWT_REFRESH_TOKEN_EXPIRY (%s)", c.JWTAccessExpiry, c.JWTRefreshExpiry)
	}
	if c.MFAChallengeTTL <= 0 {
		return fmt.Errorf("MFA_CHALLENGE_TTL must be positive, got %s", c.MFAChallengeTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.RateLimitRequests < 1 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid rate limit: %d per %s", c.RateLimitRequests, c.RateLimitWindow)
	}

	var err error
	if c.trustedNets, err = netutil.ParsePrefixes(c.TrustedCIDRs); err != nil {
		return fmt.Errorf("TRUSTED_CIDRS: %w", err)
	}
	if c.trustedProxies, err = netutil.ParsePrefixes(c.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if _, err := netutil.ParsePrefixes(c.OAuthBrokerCIDRs); err != nil {
		return fmt.Errorf("OAUTH_BROKER_CIDRS: %w", err)
	}
	return nil
}

// TrustedNetworks returns the parsed TRUSTED_CIDRS used by the policy engine.
func (c *Config) TrustedNetworks() []netip.Prefix {
	return c.trustedNets
}

// TrustedProxyNetworks returns the parsed TRUSTED_PROXIES.
func (c *Config) TrustedProxyNetworks() []netip.Prefix {
	return c.trustedProxies
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	return pg
}

// Redis returns the client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// CORS returns the CORS middleware configuration.
func (c *Config) CORS() middleware.CORSConfig {
	cc := middleware.DefaultCORSConfig()
	cc.AllowedOrigins = c.CORSAllowedOrigins
	cc.Environment = c.Environment
	return cc
}
