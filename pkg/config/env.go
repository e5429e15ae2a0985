package config

const EnvPrefix = "VEGSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	SubmissionPolicyQueue  = "queue"
	SubmissionPolicyReject = "reject"
)

const (
	EnvAppEnv   = "VEGSHOP_APP_ENV"
	EnvPort     = "VEGSHOP_APP_PORT"
	EnvLogLevel = "VEGSHOP_LOG_LEVEL"

	EnvDBDSN  = "VEGSHOP_DB_DSN"
	EnvDBHost = "VEGSHOP_DB_HOST"
	EnvDBUser = "VEGSHOP_DB_USER"
	EnvDBName = "VEGSHOP_DB_NAME"

	EnvRedisURL = "VEGSHOP_REDIS_URL"

	EnvJWTSecret = "VEGSHOP_JWT_SECRET"
	EnvJWTIssuer = "VEGSHOP_JWT_ISSUER"

	EnvUseSQLite = "VEGSHOP_USE_SQLITE"

	EnvOrdersReservedFraction = "VEGSHOP_ORDERS_RESERVED_FRACTION"
	EnvOrdersTimezone         = "VEGSHOP_ORDERS_TIMEZONE"
	EnvOrdersMaxAttempts      = "VEGSHOP_ORDERS_MAX_ATTEMPTS"
	EnvOrdersSubmissionPolicy = "VEGSHOP_ORDERS_SUBMISSION_POLICY"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
