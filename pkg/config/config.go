package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Sync          SyncConfig
	Bulk          BulkConfig
	PrestaShop    PrestaShopConfig
	Baselinker    BaselinkerConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Cron          CronConfig
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
	Env          string `envconfig:"PIMHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"PIMHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PIMHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PIMHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PIMHUB_DB_DSN"`
	Driver string `envconfig:"PIMHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PIMHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"PIMHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PIMHUB_DB_USER"`
	LegacyPassword string `envconfig:"PIMHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"PIMHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"PIMHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PIMHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIMHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIMHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIMHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PIMHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PIMHUB_REDIS_ADDR"`
	Password     string        `envconfig:"PIMHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIMHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIMHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIMHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIMHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIMHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIMHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PIMHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PIMHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PIMHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PIMHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PIMHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PIMHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PIMHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PIMHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PIMHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PIMHUB_AUTH_RL_LOGIN_WINDOW" default:"5m"`
	LoginIPLimit    int           `envconfig:"PIMHUB_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit int           `envconfig:"PIMHUB_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PIMHUB_AUTO_MIGRATE" default:"false"`
}

// SyncConfig tunes the media reconciliation core.
type SyncConfig struct {
	AdapterTimeout time.Duration `envconfig:"PIMHUB_SYNC_ADAPTER_TIMEOUT" default:"15s"`
	LedgerTTL      time.Duration `envconfig:"PIMHUB_SYNC_LEDGER_TTL" default:"4h"`
}

// BulkConfig tunes the bulk price/stock engine.
type BulkConfig struct {
	PreviewTTL      time.Duration `envconfig:"PIMHUB_BULK_PREVIEW_TTL" default:"30m"`
	MaxSelectionLen int           `envconfig:"PIMHUB_BULK_MAX_SELECTION" default:"500"`
}

type PrestaShopConfig struct {
	RequestTimeout time.Duration `envconfig:"PIMHUB_PRESTASHOP_REQUEST_TIMEOUT" default:"15s"`
	UserAgent      string        `envconfig:"PIMHUB_PRESTASHOP_USER_AGENT" default:"pimhub/1.0"`
}

type BaselinkerConfig struct {
	Endpoint       string        `envconfig:"PIMHUB_BASELINKER_ENDPOINT" default:"https://api.baselinker.com/connector.php"`
	RequestTimeout time.Duration `envconfig:"PIMHUB_BASELINKER_REQUEST_TIMEOUT" default:"15s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PIMHUB_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PIMHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PIMHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName  string        `envconfig:"PIMHUB_GCS_BUCKET"`
	UploadTTL   time.Duration `envconfig:"PIMHUB_GCS_UPLOAD_TTL" default:"15m"`
	DownloadTTL time.Duration `envconfig:"PIMHUB_GCS_DOWNLOAD_TTL" default:"1h"`
}

type PubSubConfig struct {
	MediaImportTopic        string `envconfig:"PIMHUB_PUBSUB_MEDIA_IMPORT_TOPIC" default:"pim-media-import-jobs"`
	MediaImportSubscription string `envconfig:"PIMHUB_PUBSUB_MEDIA_IMPORT_SUBSCRIPTION"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"PIMHUB_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"PIMHUB_CRON_LOCK_TTL" default:"55m"`
	PendingImportMaxAge   time.Duration `envconfig:"PIMHUB_CRON_PENDING_IMPORT_MAX_AGE" default:"24h"`
	NotificationRetention time.Duration `envconfig:"PIMHUB_CRON_NOTIFICATION_RETENTION" default:"720h"`
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
