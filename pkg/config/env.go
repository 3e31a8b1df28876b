package config

const (
	EnvPrefix = "SMARTPARK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:smartpark.db?cache=shared&_foreign_keys=on"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv        = "SMARTPARK_APP_ENV"
	EnvPort          = "SMARTPARK_APP_PORT"
	EnvDBDSN         = "SMARTPARK_DB_DSN"
	EnvDBHost        = "SMARTPARK_DB_HOST"
	EnvDBUser        = "SMARTPARK_DB_USER"
	EnvDBName        = "SMARTPARK_DB_NAME"
	EnvDBPassword    = "SMARTPARK_DB_PASSWORD"
	EnvRedisURL      = "SMARTPARK_REDIS_URL"
	EnvAuthSecret    = "SMARTPARK_AUTH_JWT_SECRET"
	EnvAuthIssuer    = "SMARTPARK_AUTH_ISSUER"
	EnvCameraKey     = "SMARTPARK_CAMERA_KEY"
	EnvDetectorEvery = "SMARTPARK_DETECTOR_INTERVAL"
	EnvUseSQLite     = "SMARTPARK_USE_SQLITE"
	EnvCORSOrigins   = "SMARTPARK_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
