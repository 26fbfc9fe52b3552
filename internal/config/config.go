package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgconfig "github.com/SultanSulimanSerj/portal/pkg/config"
)

const (
	envDevelopment  = "development"
	minSecretLength = 32
)

// Config holds all configuration for the portal API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"3000"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	CookieDomain       string   `env:"COOKIE_DOMAIN"`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// PostgreSQL
	DatabaseURL      string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns       int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBSlowQueryAfter time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis backs the login limiter.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRate float64 `env:"OTEL_TRACES_SAMPLE_RATE" envDefault:"1"`

	// JWT
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET,notEmpty"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,notEmpty"`
	JWTAccessTTL     TTL    `env:"JWT_ACCESS_EXPIRES_IN" envDefault:"15m"`
	JWTRefreshTTL    TTL    `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"7d"`

	// Auth behaviour
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"12"`
	RevokeOnReuse      bool          `env:"AUTH_REVOKE_ON_REUSE" envDefault:"false"`
	LoginMaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow        time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	PasswordResetTTL   time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`
}

// TTL is a duration that also accepts a day suffix, e.g. "7d".
type TTL time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TTL) UnmarshalText(text []byte) error {
	d, err := ParseTTL(string(text))
	if err != nil {
		return err
	}
	*t = TTL(d)
	return nil
}

// Duration returns t as a time.Duration.
func (t TTL) Duration() time.Duration {
	return time.Duration(t)
}

// ParseTTL parses a Go duration or a whole number of days ("7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid ttl %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	return d, nil
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load portal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}

	switch {
	case c.JWTAccessSecret == "" || c.JWTRefreshSecret == "":
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set"))
	case c.JWTAccessSecret == c.JWTRefreshSecret:
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}

	if !c.IsDevelopment() {
		if len(c.JWTAccessSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_ACCESS_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.JWTAccessSecret)))
		}
		if len(c.JWTRefreshSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.JWTRefreshSecret)))
		}
	}

	if c.JWTAccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_EXPIRES_IN must be positive"))
	}
	if c.JWTRefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT_REFRESH_EXPIRES_IN must be positive"))
	}
	if c.LoginMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be at least 1, got %d", c.LoginMaxAttempts))
	}
	if c.LoginWindow <= 0 || c.PasswordResetTTL <= 0 || c.TokenSweepInterval <= 0 {
		errs = append(errs, errors.New("LOGIN_WINDOW, PASSWORD_RESET_TTL and TOKEN_SWEEP_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == envDevelopment
}
