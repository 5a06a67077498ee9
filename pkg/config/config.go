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
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Realtime     RealtimeConfig
	CORS         CORSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Storage      StorageConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GT_APP_ENV" required:"true"`
	Port         string `envconfig:"GT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"GT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GT_DB_DSN"`
	Driver string `envconfig:"GT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GT_DB_HOST"`
	LegacyPort     int    `envconfig:"GT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GT_DB_USER"`
	LegacyPassword string `envconfig:"GT_DB_PASSWORD"`
	LegacyName     string `envconfig:"GT_DB_NAME"`
	LegacySSLMode  string `envconfig:"GT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"GT_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"GT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GT_REDIS_ADDR"`
	Password     string        `envconfig:"GT_REDIS_PASSWORD"`
	DB           int           `envconfig:"GT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify tokens issued by the
// identity provider. ExpirationMinutes only applies to locally minted tokens.
type JWTConfig struct {
	Secret            string `envconfig:"GT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GT_JWT_ISSUER" required:"true"`
	Audience          string `envconfig:"GT_JWT_AUDIENCE"`
	ExpirationMinutes int    `envconfig:"GT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	MessageWindow time.Duration `envconfig:"GT_RATE_LIMIT_MESSAGE_WINDOW" default:"1m"`
	MessageLimit  int           `envconfig:"GT_RATE_LIMIT_MESSAGE_LIMIT" default:"30"`
	WriteWindow   time.Duration `envconfig:"GT_RATE_LIMIT_WRITE_WINDOW" default:"1m"`
	WriteLimit    int           `envconfig:"GT_RATE_LIMIT_WRITE_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"GT_AUTO_MIGRATE" default:"false"`
	RealtimeFanout bool `envconfig:"GT_FEATURE_REALTIME_FANOUT" default:"true"`
	BlobCleanup    bool `envconfig:"GT_FEATURE_BLOB_CLEANUP" default:"true"`
}

type RealtimeConfig struct {
	Channel        string        `envconfig:"GT_REALTIME_CHANNEL" default:"messages"`
	WriteWait      time.Duration `envconfig:"GT_REALTIME_WRITE_WAIT" default:"10s"`
	PongWait       time.Duration `envconfig:"GT_REALTIME_PONG_WAIT" default:"60s"`
	SendBuffer     int           `envconfig:"GT_REALTIME_SEND_BUFFER" default:"64"`
	MaxMessageSize int64         `envconfig:"GT_REALTIME_MAX_MESSAGE_SIZE" default:"4096"`
}

// PingPeriod is derived from PongWait so pings always land before the read deadline.
func (r RealtimeConfig) PingPeriod() time.Duration {
	if r.PongWait <= 0 {
		return 0
	}
	return (r.PongWait * 9) / 10
}

type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"GT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         time.Duration `envconfig:"GT_CORS_MAX_AGE" default:"5m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"GT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	TransactionsTopic string `envconfig:"GT_PUBSUB_TRANSACTIONS_TOPIC" default:"gt-transaction-events"`
	ReviewsTopic      string `envconfig:"GT_PUBSUB_REVIEWS_TOPIC" default:"gt-review-events"`
	ListingsTopic     string `envconfig:"GT_PUBSUB_LISTINGS_TOPIC" default:"gt-listing-events"`
}

// StorageConfig points at the S3-compatible bucket that holds listing images.
type StorageConfig struct {
	Endpoint      string `envconfig:"GT_STORAGE_ENDPOINT"`
	Region        string `envconfig:"GT_STORAGE_REGION" default:"ap-northeast-1"`
	Bucket        string `envconfig:"GT_STORAGE_BUCKET"`
	AccessKey     string `envconfig:"GT_STORAGE_ACCESS_KEY"`
	SecretKey     string `envconfig:"GT_STORAGE_SECRET_KEY"`
	PublicBaseURL string `envconfig:"GT_STORAGE_PUBLIC_BASE_URL"`
	UsePathStyle  bool   `envconfig:"GT_STORAGE_USE_PATH_STYLE" default:"false"`
}

// Enabled reports whether enough settings are present to talk to the bucket.
func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
