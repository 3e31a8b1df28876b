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
	Auth         AuthConfig
	Security     SecurityConfig
	Detector     DetectorConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SMARTPARK_APP_ENV" required:"true"`
	Port         string `envconfig:"SMARTPARK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SMARTPARK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SMARTPARK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SMARTPARK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SMARTPARK_DB_DSN"`
	Driver string `envconfig:"SMARTPARK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SMARTPARK_DB_HOST"`
	LegacyPort     int    `envconfig:"SMARTPARK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SMARTPARK_DB_USER"`
	LegacyPassword string `envconfig:"SMARTPARK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SMARTPARK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SMARTPARK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SMARTPARK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SMARTPARK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SMARTPARK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SMARTPARK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SMARTPARK_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SMARTPARK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SMARTPARK_REDIS_ADDR"`
	Password     string        `envconfig:"SMARTPARK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SMARTPARK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SMARTPARK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SMARTPARK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SMARTPARK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SMARTPARK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SMARTPARK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig describes how bearer tokens minted by the identity provider are verified.
type AuthConfig struct {
	JWTSecret    string        `envconfig:"SMARTPARK_AUTH_JWT_SECRET" required:"true"`
	Issuer       string        `envconfig:"SMARTPARK_AUTH_ISSUER"`
	Audience     string        `envconfig:"SMARTPARK_AUTH_AUDIENCE" default:"authenticated"`
	UserCacheTTL time.Duration `envconfig:"SMARTPARK_AUTH_USER_CACHE_TTL" default:"5m"`
}

type SecurityConfig struct {
	CameraKey string `envconfig:"SMARTPARK_CAMERA_KEY" required:"true"`
}

type DetectorConfig struct {
	Enabled          bool          `envconfig:"SMARTPARK_DETECTOR_ENABLED" default:"true"`
	Interval         time.Duration `envconfig:"SMARTPARK_DETECTOR_INTERVAL" default:"10s"`
	FailureThreshold float64       `envconfig:"SMARTPARK_DETECTOR_FAILURE_THRESHOLD" default:"5"`
	FailureDecay     float64       `envconfig:"SMARTPARK_DETECTOR_FAILURE_DECAY" default:"30"`
	FailureBackoff   time.Duration `envconfig:"SMARTPARK_DETECTOR_FAILURE_BACKOFF" default:"15s"`
	ShutdownTimeout  time.Duration `envconfig:"SMARTPARK_DETECTOR_SHUTDOWN_TIMEOUT" default:"10s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SMARTPARK_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"SMARTPARK_CRON_LOCK_TTL" default:"5m"`
}

type RateLimitConfig struct {
	Window             time.Duration `envconfig:"SMARTPARK_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit            int           `envconfig:"SMARTPARK_RATE_LIMIT_IP_LIMIT" default:"120"`
	BookingWindow      time.Duration `envconfig:"SMARTPARK_RATE_LIMIT_BOOKING_WINDOW" default:"1m"`
	BookingLimitByUser int           `envconfig:"SMARTPARK_RATE_LIMIT_BOOKING_USER_LIMIT" default:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SMARTPARK_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SMARTPARK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SMARTPARK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
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
