package config

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "SUNCOW"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages).
const (
	EnvAppEnv          = "SUNCOW_APP_ENV"
	EnvPort            = "SUNCOW_APP_PORT"
	EnvDBDSN           = "SUNCOW_DB_DSN"
	EnvCDEDSN          = "SUNCOW_CDE_DSN"
	EnvRedisURL        = "SUNCOW_REDIS_URL"
	EnvStorageEndpoint = "SUNCOW_STORAGE_ENDPOINT"
	EnvStorageAccess   = "SUNCOW_STORAGE_ACCESS_KEY"
	EnvStorageSecret   = "SUNCOW_STORAGE_SECRET_KEY"
	EnvStorageBucket   = "SUNCOW_STORAGE_BUCKET"
	EnvAdminJWTSecret  = "SUNCOW_ADMIN_JWT_SECRET"
	EnvAdminJWTIssuer  = "SUNCOW_ADMIN_JWT_ISSUER"
)
