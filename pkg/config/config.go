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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Catalog      CatalogConfig
	Cart         CartConfig
	Breaker      BreakerConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
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
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETPLACE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPLACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPLACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETPLACE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"MARKETPLACE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETPLACE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPLACE_DB_DSN"`
	Driver string `envconfig:"MARKETPLACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETPLACE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETPLACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETPLACE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETPLACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETPLACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETPLACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPLACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPLACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPLACE_REDIS_URL"`
	Address      string        `envconfig:"MARKETPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPLACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPLACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
	Namespace    string        `envconfig:"MARKETPLACE_REDIS_NAMESPACE" default:"marketplace"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret string `envconfig:"MARKETPLACE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MARKETPLACE_JWT_ISSUER" required:"true"`
	// ExpirationMinutes bounds tokens minted by the dev token command.
	ExpirationMinutes int `envconfig:"MARKETPLACE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETPLACE_AUTO_MIGRATE" default:"false"`
}

type CatalogConfig struct {
	DefaultPageSize int `envconfig:"MARKETPLACE_CATALOG_DEFAULT_PAGE_SIZE" default:"12"`
	MaxPageSize     int `envconfig:"MARKETPLACE_CATALOG_MAX_PAGE_SIZE" default:"100"`
	RecentLimit     int `envconfig:"MARKETPLACE_CATALOG_RECENT_LIMIT" default:"8"`
}

type CartConfig struct {
	// LockBackend selects the per-cart writer lock: "memory" or "redis".
	LockBackend    string        `envconfig:"MARKETPLACE_CART_LOCK_BACKEND" default:"memory"`
	LockTTL        time.Duration `envconfig:"MARKETPLACE_CART_LOCK_TTL" default:"10s"`
	LockRetryEvery time.Duration `envconfig:"MARKETPLACE_CART_LOCK_RETRY" default:"25ms"`
	LockTimeout    time.Duration `envconfig:"MARKETPLACE_CART_LOCK_TIMEOUT" default:"3s"`
	MaxRetries     int           `envconfig:"MARKETPLACE_CART_MAX_RETRIES" default:"3"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `envconfig:"MARKETPLACE_BREAKER_MAX_REQUESTS" default:"1"`
	Interval         time.Duration `envconfig:"MARKETPLACE_BREAKER_INTERVAL" default:"60s"`
	Timeout          time.Duration `envconfig:"MARKETPLACE_BREAKER_TIMEOUT" default:"30s"`
	FailureThreshold uint32        `envconfig:"MARKETPLACE_BREAKER_FAILURE_THRESHOLD" default:"5"`
}

type EventingConfig struct {
	// Transport selects the outbox publisher sink: "pubsub" or "kafka".
	Transport string `envconfig:"MARKETPLACE_EVENTING_TRANSPORT" default:"pubsub"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Transport)) {
	case TransportPubSub, TransportKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvEventingTransport, TransportPubSub, TransportKafka)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETPLACE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKETPLACE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETPLACE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CartTopic    string `envconfig:"MARKETPLACE_PUBSUB_CART_TOPIC" default:"marketplace-cart-events"`
	CatalogTopic string `envconfig:"MARKETPLACE_PUBSUB_CATALOG_TOPIC" default:"marketplace-catalog-events"`
}

type KafkaConfig struct {
	Brokers      string        `envconfig:"MARKETPLACE_KAFKA_BROKERS" default:"localhost:9092"`
	CartTopic    string        `envconfig:"MARKETPLACE_KAFKA_CART_TOPIC" default:"marketplace.cart"`
	CatalogTopic string        `envconfig:"MARKETPLACE_KAFKA_CATALOG_TOPIC" default:"marketplace.catalog"`
	WriteTimeout time.Duration `envconfig:"MARKETPLACE_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

// BrokerList splits the comma separated broker addresses.
func (k KafkaConfig) BrokerList() []string {
	out := []string{}
	for _, b := range strings.Split(k.Brokers, ",") {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKETPLACE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MARKETPLACE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"MARKETPLACE_CRON_LOCK_TTL" default:"2h"`
	// CartTTL is how long a cart may go untouched before it is purged.
	CartTTL             time.Duration `envconfig:"MARKETPLACE_CRON_CART_TTL" default:"168h"`
	CartBatchSize       int           `envconfig:"MARKETPLACE_CRON_CART_BATCH_SIZE" default:"500"`
	CartDryRun          bool          `envconfig:"MARKETPLACE_CRON_CART_DRY_RUN" default:"false"`
	OutboxRetentionDays int           `envconfig:"MARKETPLACE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
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
