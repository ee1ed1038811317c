package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Capture      CaptureConfig
	Expunge      ExpungeConfig
	Stripe       StripeConfig
	Worldpay     WorldpayConfig
	Epdq         EpdqConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = "file:connector.db?cache=shared"
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONNECTOR_APP_ENV" required:"true"`
	Port         string `envconfig:"CONNECTOR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CONNECTOR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CONNECTOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONNECTOR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CONNECTOR_DB_DSN"`
	Driver string `envconfig:"CONNECTOR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CONNECTOR_DB_HOST"`
	LegacyPort     int    `envconfig:"CONNECTOR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONNECTOR_DB_USER"`
	LegacyPassword string `envconfig:"CONNECTOR_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONNECTOR_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONNECTOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONNECTOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONNECTOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONNECTOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONNECTOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONNECTOR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CONNECTOR_REDIS_ADDR"`
	Password     string        `envconfig:"CONNECTOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONNECTOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONNECTOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONNECTOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONNECTOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONNECTOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONNECTOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CaptureConfig bounds the capture sweep.
type CaptureConfig struct {
	Window            time.Duration `envconfig:"CONNECTOR_CAPTURE_WINDOW" default:"1m"`
	RetryCeiling      int           `envconfig:"CONNECTOR_CAPTURE_RETRY_CEILING" default:"48"`
	BatchSize         int           `envconfig:"CONNECTOR_CAPTURE_BATCH_SIZE" default:"100"`
	SubmitTimeout     time.Duration `envconfig:"CONNECTOR_CAPTURE_SUBMIT_TIMEOUT" default:"30s"`
	SweepInterval     time.Duration `envconfig:"CONNECTOR_CAPTURE_SWEEP_INTERVAL" default:"2m"`
	ChargesConsidered int           `envconfig:"CONNECTOR_CAPTURE_CHARGES_CONSIDERED_OVERDUE" default:"60"`
}

// ExpungeConfig bounds the expunge sweep.
type ExpungeConfig struct {
	MinimumAgeDays                   int `envconfig:"CONNECTOR_EXPUNGE_MINIMUM_AGE_DAYS" default:"90"`
	ExcludeRecentlyParityCheckedDays int `envconfig:"CONNECTOR_EXPUNGE_PARITY_CHECK_GRACE_DAYS" default:"7"`
	BatchSize                        int `envconfig:"CONNECTOR_EXPUNGE_BATCH_SIZE" default:"50"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CONNECTOR_STRIPE_API_KEY"`
	Env    string `envconfig:"CONNECTOR_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type WorldpayConfig struct {
	URL     string        `envconfig:"CONNECTOR_WORLDPAY_URL"`
	Timeout time.Duration `envconfig:"CONNECTOR_WORLDPAY_TIMEOUT" default:"30s"`
}

type EpdqConfig struct {
	URL     string        `envconfig:"CONNECTOR_EPDQ_URL"`
	Timeout time.Duration `envconfig:"CONNECTOR_EPDQ_TIMEOUT" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CONNECTOR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CONNECTOR_AUTO_MIGRATE" default:"false"`
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
