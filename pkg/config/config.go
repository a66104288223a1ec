package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	CDE       CDEConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Claims    ClaimsConfig
	Reconcile ReconcileConfig
	Outbox    OutboxConfig
	PubSub    PubSubConfig
	GCP       GCPConfig
	AdminJWT  AdminJWTConfig
	Features  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUNCOW_APP_ENV" required:"true"`
	Port         string `envconfig:"SUNCOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUNCOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUNCOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUNCOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN             string        `envconfig:"SUNCOW_DB_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"SUNCOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUNCOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUNCOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUNCOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// CDEConfig points at the legacy MySQL inventory system. The platform only
// reads from it; the single write-back (sale notification) is best effort.
type CDEConfig struct {
	DSN          string        `envconfig:"SUNCOW_CDE_DSN" required:"true"`
	Table        string        `envconfig:"SUNCOW_CDE_TABLE" default:"productos"`
	QueryTimeout time.Duration `envconfig:"SUNCOW_CDE_QUERY_TIMEOUT" default:"10s"`
	MaxOpenConns int           `envconfig:"SUNCOW_CDE_MAX_OPEN_CONNS" default:"4"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUNCOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUNCOW_REDIS_ADDR"`
	Password     string        `envconfig:"SUNCOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUNCOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUNCOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUNCOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUNCOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUNCOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUNCOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// StorageConfig targets the R2/S3 bucket holding the photo files.
type StorageConfig struct {
	Endpoint          string        `envconfig:"SUNCOW_STORAGE_ENDPOINT" required:"true"`
	AccessKey         string        `envconfig:"SUNCOW_STORAGE_ACCESS_KEY" required:"true"`
	SecretKey         string        `envconfig:"SUNCOW_STORAGE_SECRET_KEY" required:"true"`
	Bucket            string        `envconfig:"SUNCOW_STORAGE_BUCKET" required:"true"`
	Region            string        `envconfig:"SUNCOW_STORAGE_REGION" default:"auto"`
	UseSSL            bool          `envconfig:"SUNCOW_STORAGE_USE_SSL" default:"true"`
	KeyPrefix         string        `envconfig:"SUNCOW_STORAGE_KEY_PREFIX" default:"photos/"`
	DownloadURLExpiry time.Duration `envconfig:"SUNCOW_STORAGE_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type ClaimsConfig struct {
	DefaultTTL    time.Duration `envconfig:"SUNCOW_CLAIMS_DEFAULT_TTL" default:"30m"`
	MaxTTL        time.Duration `envconfig:"SUNCOW_CLAIMS_MAX_TTL" default:"4h"`
	SweepInterval time.Duration `envconfig:"SUNCOW_CLAIMS_SWEEP_INTERVAL" default:"1m"`
}

type ReconcileConfig struct {
	Interval  time.Duration `envconfig:"SUNCOW_RECONCILE_INTERVAL" default:"5m"`
	BatchSize int           `envconfig:"SUNCOW_RECONCILE_BATCH_SIZE" default:"500"`
	LockTTL   time.Duration `envconfig:"SUNCOW_RECONCILE_LOCK_TTL" default:"15m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SUNCOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SUNCOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SUNCOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PubSubConfig struct {
	PhotoTopic string `envconfig:"SUNCOW_PUBSUB_PHOTO_TOPIC" default:"sc-photo-events"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SUNCOW_GCP_PROJECT_ID"`
}

// AdminJWTConfig guards the manual-override and discrepancy admin surface.
type AdminJWTConfig struct {
	Secret            string `envconfig:"SUNCOW_ADMIN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SUNCOW_ADMIN_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SUNCOW_ADMIN_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TokenTTL returns the admin token TTL configured in minutes.
func (j AdminJWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUNCOW_AUTO_MIGRATE" default:"false"`
}
