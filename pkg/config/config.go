package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Orders       OrdersConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Tracing      TracingConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VEGSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"VEGSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VEGSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VEGSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VEGSHOP_SERVICE_KIND" default:"api"`
}

// HTTPConfig tunes the API server surface.
type HTTPConfig struct {
	CORSOrigins       []string      `envconfig:"VEGSHOP_CORS_ORIGINS"`
	RateLimitRequests int           `envconfig:"VEGSHOP_RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"VEGSHOP_RATE_LIMIT_WINDOW" default:"1m"`
	ReadTimeout       time.Duration `envconfig:"VEGSHOP_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"VEGSHOP_HTTP_WRITE_TIMEOUT" default:"45s"`
	ShutdownTimeout   time.Duration `envconfig:"VEGSHOP_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type DBConfig struct {
	DSN    string `envconfig:"VEGSHOP_DB_DSN"`
	Driver string `envconfig:"VEGSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VEGSHOP_DB_HOST"`
	Port     int    `envconfig:"VEGSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"VEGSHOP_DB_USER"`
	Password string `envconfig:"VEGSHOP_DB_PASSWORD"`
	Name     string `envconfig:"VEGSHOP_DB_NAME"`
	SSLMode  string `envconfig:"VEGSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VEGSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VEGSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VEGSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VEGSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VEGSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VEGSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"VEGSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"VEGSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VEGSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VEGSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VEGSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VEGSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VEGSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VEGSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VEGSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VEGSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VEGSHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VEGSHOP_AUTO_MIGRATE" default:"false"`
}

// OrdersConfig drives the reservation engine and the submission gate.
type OrdersConfig struct {
	ReservedFraction string        `envconfig:"VEGSHOP_ORDERS_RESERVED_FRACTION" default:"0.15"`
	Timezone         string        `envconfig:"VEGSHOP_ORDERS_TIMEZONE" default:"Asia/Kolkata"`
	MaxAttempts      int           `envconfig:"VEGSHOP_ORDERS_MAX_ATTEMPTS" default:"5"`
	RetryBaseDelay   time.Duration `envconfig:"VEGSHOP_ORDERS_RETRY_BASE_DELAY" default:"20ms"`
	RetryMaxDelay    time.Duration `envconfig:"VEGSHOP_ORDERS_RETRY_MAX_DELAY" default:"500ms"`
	SubmissionPolicy string        `envconfig:"VEGSHOP_ORDERS_SUBMISSION_POLICY" default:"queue"`
	SubmissionWait   time.Duration `envconfig:"VEGSHOP_ORDERS_SUBMISSION_WAIT" default:"30s"`
	SubmissionTTL    time.Duration `envconfig:"VEGSHOP_ORDERS_SUBMISSION_TTL" default:"60s"`
}

// ReservedBuffer returns the parsed reserved fraction for KG items.
func (o OrdersConfig) ReservedBuffer() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(o.ReservedFraction))
	if err != nil {
		return decimal.Zero
	}
	return value
}

// Location returns the shop's calendar timezone, falling back to the process local zone.
func (o OrdersConfig) Location() *time.Location {
	if strings.TrimSpace(o.Timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (o OrdersConfig) validate() error {
	fraction, err := decimal.NewFromString(strings.TrimSpace(o.ReservedFraction))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvOrdersReservedFraction, err)
	}
	if fraction.IsNegative() || fraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1), got %s", EnvOrdersReservedFraction, o.ReservedFraction)
	}
	if _, err := time.LoadLocation(o.Timezone); err != nil {
		return fmt.Errorf("%s: %w", EnvOrdersTimezone, err)
	}
	switch strings.ToLower(o.SubmissionPolicy) {
	case SubmissionPolicyQueue, SubmissionPolicyReject:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOrdersSubmissionPolicy, SubmissionPolicyQueue, SubmissionPolicyReject)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"VEGSHOP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"VEGSHOP_PUBSUB_ORDERS_TOPIC" default:"vegshop-order-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VEGSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VEGSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VEGSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"VEGSHOP_OUTBOX_RETENTION" default:"720h"`
}

type TracingConfig struct {
	Enabled     bool    `envconfig:"VEGSHOP_TRACING_ENABLED" default:"false"`
	Endpoint    string  `envconfig:"VEGSHOP_TRACING_OTLP_ENDPOINT" default:"localhost:4318"`
	Insecure    bool    `envconfig:"VEGSHOP_TRACING_OTLP_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"VEGSHOP_TRACING_SAMPLE_RATIO" default:"1"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VEGSHOP_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"VEGSHOP_CRON_LOCK_TTL" default:"50m"`
	// MetricsAddr exposes /metrics for the worker when set, e.g. ":9102".
	MetricsAddr string `envconfig:"VEGSHOP_CRON_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if sqlite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = "file:vegshop.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
