package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	EnvPrefix = "GIGLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "GIGLEDGER_APP_ENV"
	EnvPort               = "GIGLEDGER_APP_PORT"
	EnvDBDSN              = "GIGLEDGER_DB_DSN"
	EnvDBHost             = "GIGLEDGER_DB_HOST"
	EnvDBUser             = "GIGLEDGER_DB_USER"
	EnvDBName             = "GIGLEDGER_DB_NAME"
	EnvRedisURL           = "GIGLEDGER_REDIS_URL"
	EnvJWTSecret          = "GIGLEDGER_JWT_SECRET"
	EnvJWTIssuer          = "GIGLEDGER_JWT_ISSUER"
	EnvJWTExpMins         = "GIGLEDGER_JWT_EXPIRATION_MINUTES"
	EnvPlatformFeePercent = "GIGLEDGER_PLATFORM_FEE_PERCENT"
	EnvWalletMaxCapacity  = "GIGLEDGER_WALLET_MAX_CAPACITY"
	EnvGCPProjectID       = "GIGLEDGER_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "GIGLEDGER_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Escrow       EscrowConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs error
	if _, err := c.Escrow.FeePercent(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.Escrow.MaxWalletCapacity(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Escrow.TxMaxRetries < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s_TX_MAX_RETRIES must not be negative", EnvPrefix))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = multierr.Append(errs, errors.New("outbox batch size must be positive"))
	}
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"GIGLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"GIGLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GIGLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GIGLEDGER_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list.
	CORSOrigins []string `envconfig:"GIGLEDGER_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GIGLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GIGLEDGER_DB_DSN"`
	Driver string `envconfig:"GIGLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GIGLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"GIGLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GIGLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"GIGLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"GIGLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"GIGLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIGLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIGLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIGLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIGLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GIGLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GIGLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"GIGLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"GIGLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GIGLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GIGLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GIGLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GIGLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GIGLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GIGLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GIGLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GIGLEDGER_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GIGLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GIGLEDGER_AUTO_MIGRATE" default:"false"`
}

// EscrowConfig holds the money-movement policy knobs.
type EscrowConfig struct {
	PlatformFeePercent string        `envconfig:"GIGLEDGER_PLATFORM_FEE_PERCENT" default:"5"`
	WalletMaxCapacity  string        `envconfig:"GIGLEDGER_WALLET_MAX_CAPACITY" default:"1000000"`
	TxMaxRetries       int           `envconfig:"GIGLEDGER_TX_MAX_RETRIES" default:"3"`
	TxRetryBackoff     time.Duration `envconfig:"GIGLEDGER_TX_RETRY_BACKOFF" default:"25ms"`
}

// FeePercent parses the platform fee percentage; it must lie in [0, 100].
func (e EscrowConfig) FeePercent() (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(strings.TrimSpace(e.PlatformFeePercent))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", EnvPlatformFeePercent, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100, got %s", EnvPlatformFeePercent, pct)
	}
	return pct, nil
}

// MaxWalletCapacity parses the default capacity assigned to newly opened wallets.
func (e EscrowConfig) MaxWalletCapacity() (decimal.Decimal, error) {
	capacity, err := decimal.NewFromString(strings.TrimSpace(e.WalletMaxCapacity))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", EnvWalletMaxCapacity, err)
	}
	if !capacity.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive, got %s", EnvWalletMaxCapacity, capacity)
	}
	return capacity, nil
}

type RateLimitConfig struct {
	MoneyWindow time.Duration `envconfig:"GIGLEDGER_RATE_LIMIT_MONEY_WINDOW" default:"1m"`
	MoneyLimit  int           `envconfig:"GIGLEDGER_RATE_LIMIT_MONEY_LIMIT" default:"30"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"GIGLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"GIGLEDGER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"GIGLEDGER_PUBSUB_DOMAIN_TOPIC" default:"gigledger-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GIGLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GIGLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GIGLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"GIGLEDGER_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GIGLEDGER_CRON_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
