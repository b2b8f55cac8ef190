package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "recon"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Webhook    WebhookConfig
	Cron       CronConfig
	Commission CommissionConfig
	Retry      RetryConfig
	ERP        ERPConfig
	Alerts     AlertsConfig
	Flags      FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RECON_APP_ENV" required:"true"`
	Port         string `envconfig:"RECON_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RECON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RECON_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RECON_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RECON_DB_DSN"`
	Driver string `envconfig:"RECON_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"RECON_DB_HOST"`
	Port     int    `envconfig:"RECON_DB_PORT" default:"5432"`
	User     string `envconfig:"RECON_DB_USER"`
	Password string `envconfig:"RECON_DB_PASSWORD"`
	Name     string `envconfig:"RECON_DB_NAME"`
	SSLMode  string `envconfig:"RECON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	if db.Host == "" {
		missing = append(missing, "RECON_DB_HOST")
	}
	if db.User == "" {
		missing = append(missing, "RECON_DB_USER")
	}
	if db.Name == "" {
		missing = append(missing, "RECON_DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("database config incomplete: set RECON_DB_DSN or %s", strings.Join(missing, ", "))
	}

	db.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(db.User),
		url.QueryEscape(db.Password),
		db.Host,
		db.Port,
		db.Name,
		db.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"RECON_REDIS_URL"`
	Address      string        `envconfig:"RECON_REDIS_ADDR"`
	Password     string        `envconfig:"RECON_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// WebhookConfig holds the shared secret used to verify inbound
// payment-provider deliveries.
type WebhookConfig struct {
	Secret          string `envconfig:"RECON_WEBHOOK_SECRET"`
	SignatureHeader string `envconfig:"RECON_WEBHOOK_SIGNATURE_HEADER" default:"X-Signature"`
}

// CronConfig drives both the HTTP cron trigger endpoints and the cron worker.
// An empty Secret means the trigger endpoints reject every call.
type CronConfig struct {
	Secret         string        `envconfig:"RECON_CRON_SECRET"`
	Interval       time.Duration `envconfig:"RECON_CRON_INTERVAL" default:"1h"`
	LockTTL        time.Duration `envconfig:"RECON_CRON_LOCK_TTL" default:"55m"`
	AlertThreshold int           `envconfig:"RECON_CRON_ALERT_THRESHOLD" default:"5"`
	SyncBatchLimit int           `envconfig:"RECON_CRON_SYNC_BATCH_LIMIT" default:"50"`
}

type CommissionConfig struct {
	DefaultRate string `envconfig:"RECON_COMMISSION_DEFAULT_RATE" default:"0.12"`
	HoldDays    int    `envconfig:"RECON_COMMISSION_HOLD_DAYS" default:"14"`

	rate decimal.Decimal
}

func (c *CommissionConfig) validate() error {
	rate, err := decimal.NewFromString(c.DefaultRate)
	if err != nil {
		return fmt.Errorf("invalid commission rate %q: %w", c.DefaultRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("commission rate %s out of range [0,1]", rate)
	}
	if c.HoldDays < 0 {
		return fmt.Errorf("commission hold days must be >= 0")
	}
	c.rate = rate
	return nil
}

// Rate returns the parsed default commission rate.
func (c CommissionConfig) Rate() decimal.Decimal {
	return c.rate
}

// HoldPeriod returns the maturation window applied at settlement.
func (c CommissionConfig) HoldPeriod() time.Duration {
	return time.Duration(c.HoldDays) * 24 * time.Hour
}

type RetryConfig struct {
	MaxAttempts int           `envconfig:"RECON_RETRY_MAX_ATTEMPTS" default:"5"`
	BaseDelay   time.Duration `envconfig:"RECON_RETRY_BASE_DELAY" default:"10s"`
	MaxDelay    time.Duration `envconfig:"RECON_RETRY_MAX_DELAY" default:"10m"`
	BatchLimit  int           `envconfig:"RECON_RETRY_BATCH_LIMIT" default:"100"`
}

type ERPConfig struct {
	BaseURL string        `envconfig:"RECON_ERP_BASE_URL"`
	APIKey  string        `envconfig:"RECON_ERP_API_KEY"`
	Timeout time.Duration `envconfig:"RECON_ERP_TIMEOUT" default:"30s"`
}

// Configured reports whether ERP sync can run at all.
func (e ERPConfig) Configured() bool {
	return e.BaseURL != "" && e.APIKey != ""
}

type AlertsConfig struct {
	WebhookURL string        `envconfig:"RECON_ALERT_WEBHOOK_URL"`
	Timeout    time.Duration `envconfig:"RECON_ALERT_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RECON_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RECON_AUTO_MIGRATE" default:"false"`
}
