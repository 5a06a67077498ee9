package config

// EnvPrefix is handed to envconfig; every field carries an explicit GT_ key.
const EnvPrefix = "GT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "GT_APP_ENV"
	EnvPort      = "GT_APP_PORT"
	EnvDBDSN     = "GT_DB_DSN"
	EnvDBDriver  = "GT_DB_DRIVER"
	EnvDBHost    = "GT_DB_HOST"
	EnvDBUser    = "GT_DB_USER"
	EnvDBName    = "GT_DB_NAME"
	EnvRedisURL  = "GT_REDIS_URL"
	EnvJWTSecret = "GT_JWT_SECRET"
	EnvJWTIssuer = "GT_JWT_ISSUER"

	EnvCORSAllowedOrigins = "GT_CORS_ALLOWED_ORIGINS"
	EnvStorageBucket      = "GT_STORAGE_BUCKET"
	EnvPubSubTxTopic      = "GT_PUBSUB_TRANSACTIONS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
