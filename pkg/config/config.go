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
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"
	EnvRedisURL = "STOREFRONT_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Store        StoreConfig
	Shipping     ShippingConfig
	Payment      PaymentConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// TaxMode selects how displayed prices relate to tax.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive"
	TaxModeInclusive TaxMode = "inclusive"
)

// StoreConfig carries the store-wide commerce settings: base currency, tax
// behavior, and the free shipping threshold applied at checkout.
type StoreConfig struct {
	BaseCurrency          string          `envconfig:"STOREFRONT_STORE_CURRENCY" default:"USD"`
	TaxMode               string          `envconfig:"STOREFRONT_STORE_TAX_MODE" default:"exclusive"`
	DefaultTaxRate        decimal.Decimal `envconfig:"STOREFRONT_STORE_DEFAULT_TAX_RATE" default:"0"`
	FreeShippingEnabled   bool            `envconfig:"STOREFRONT_STORE_FREE_SHIPPING_ENABLED" default:"false"`
	FreeShippingThreshold decimal.Decimal `envconfig:"STOREFRONT_STORE_FREE_SHIPPING_THRESHOLD" default:"0"`
	CheckoutSessionTTL    time.Duration   `envconfig:"STOREFRONT_STORE_CHECKOUT_SESSION_TTL" default:"2h"`
}

// Mode returns the normalized tax mode.
func (s StoreConfig) Mode() TaxMode {
	if strings.EqualFold(s.TaxMode, string(TaxModeInclusive)) {
		return TaxModeInclusive
	}
	return TaxModeExclusive
}

func (s StoreConfig) validate() error {
	switch strings.ToLower(s.TaxMode) {
	case string(TaxModeExclusive), string(TaxModeInclusive):
	default:
		return fmt.Errorf("%s must be exclusive or inclusive", "STOREFRONT_STORE_TAX_MODE")
	}
	if s.DefaultTaxRate.IsNegative() {
		return fmt.Errorf("default tax rate must be non-negative")
	}
	if s.FreeShippingEnabled && s.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("free shipping threshold must be non-negative")
	}
	return nil
}

type ShippingConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_SHIPPING_BASE_URL"`
	APIKey  string        `envconfig:"STOREFRONT_SHIPPING_API_KEY"`
	Timeout time.Duration `envconfig:"STOREFRONT_SHIPPING_TIMEOUT" default:"10s"`
}

type PaymentConfig struct {
	Provider string        `envconfig:"STOREFRONT_PAYMENT_PROVIDER" default:"cardgate"`
	BaseURL  string        `envconfig:"STOREFRONT_PAYMENT_BASE_URL"`
	APIKey   string        `envconfig:"STOREFRONT_PAYMENT_API_KEY"`
	Secret   string        `envconfig:"STOREFRONT_PAYMENT_SECRET"`
	Timeout  time.Duration `envconfig:"STOREFRONT_PAYMENT_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
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
