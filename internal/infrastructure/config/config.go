// Package config loads service settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/validation"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	MailLog    = "log"
	MailResend = "resend"
)

type Config struct {
	Port       string        `env:"PORT,        default=8080"`
	Env        string        `env:"ENV,         default=development"`
	LogLevel   string        `env:"LOG_LEVEL,   default=info"`
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=24h"`

	// StoreDriver selects the account store: sqlite or mongo.
	StoreDriver string `env:"STORE_DRIVER, default=sqlite"`
	SQLitePath  string `env:"SQLITE_PATH,  default=users.db"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Recovery RecoveryConfig
	Accounts AccountsConfig
	Mail     MailConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=accounts"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type RecoveryConfig struct {
	Method         string        `env:"RECOVERY_METHOD,  default=question"`
	OTPTTL         time.Duration `env:"OTP_TTL,          default=5m"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS, default=5"`
	OTPLockout     time.Duration `env:"OTP_LOCKOUT,      default=15m"`
}

type AccountsConfig struct {
	BcryptCost           int      `env:"BCRYPT_COST,             default=10"`
	UsernameMinLen       int      `env:"USERNAME_MIN_LEN,        default=3"`
	PasswordRequireLower bool     `env:"PASSWORD_REQUIRE_LOWER,  default=true"`
	AdminEmails          []string `env:"ADMIN_EMAILS"`
}

type MailConfig struct {
	Provider      string        `env:"MAIL_PROVIDER,  default=log"`
	ResendAPIKey  string        `env:"RESEND_API_KEY"`
	From          string        `env:"MAIL_FROM,      default=no-reply@localhost"`
	Timeout       time.Duration `env:"MAIL_TIMEOUT,   default=10s"`
	NotifyWorkers int           `env:"NOTIFY_WORKERS, default=4"`
}

// Load reads configuration from the process environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l. Tests pass envconfig.MapLookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks enum values and settings that have no safe default.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	switch c.StoreDriver {
	case StoreSQLite, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreMongo, c.StoreDriver))
	}
	if _, err := domain.ParseRecoveryMethod(c.Recovery.Method); err != nil {
		errs = append(errs, fmt.Errorf("RECOVERY_METHOD: %w", err))
	}
	if c.Recovery.OTPTTL <= 0 || c.Recovery.OTPMaxAttempts <= 0 || c.Recovery.OTPLockout <= 0 {
		errs = append(errs, errors.New("OTP_TTL, OTP_MAX_ATTEMPTS and OTP_LOCKOUT must be positive"))
	}
	switch c.Mail.Provider {
	case MailLog:
	case MailResend:
		if c.Mail.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when MAIL_PROVIDER=resend"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER must be %q or %q, got %q", MailLog, MailResend, c.Mail.Provider))
	}

	return errors.Join(errs...)
}

// RecoveryMethod returns the validated recovery method.
func (c *Config) RecoveryMethod() domain.RecoveryMethod {
	m, err := domain.ParseRecoveryMethod(c.Recovery.Method)
	if err != nil {
		return domain.MethodQuestion
	}
	return m
}

// Policy returns the registration rules configured for this deployment.
func (c *Config) Policy() validation.Policy {
	return validation.Policy{
		MinUsernameLength: c.Accounts.UsernameMinLen,
		RequireLowercase:  c.Accounts.PasswordRequireLower,
	}
}

// SigningSecret returns the JWT secret, falling back to a fixed value in
// development so the service can start without configuration.
func (c *Config) SigningSecret() string {
	if c.JWTSecret == "" && c.IsDevelopment() {
		return "development-only-secret"
	}
	return c.JWTSecret
}
