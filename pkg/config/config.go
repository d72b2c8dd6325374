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
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Settlement    SettlementConfig
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
	Env          string `envconfig:"AGRITRACE_APP_ENV" required:"true"`
	Port         string `envconfig:"AGRITRACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGRITRACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGRITRACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AGRITRACE_DB_DSN"`
	Driver string `envconfig:"AGRITRACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGRITRACE_DB_HOST"`
	LegacyPort     int    `envconfig:"AGRITRACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGRITRACE_DB_USER"`
	LegacyPassword string `envconfig:"AGRITRACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGRITRACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGRITRACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGRITRACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGRITRACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGRITRACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGRITRACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGRITRACE_REDIS_URL"`
	Address      string        `envconfig:"AGRITRACE_REDIS_ADDR"`
	Password     string        `envconfig:"AGRITRACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGRITRACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGRITRACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGRITRACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGRITRACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGRITRACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGRITRACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGRITRACE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGRITRACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGRITRACE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AGRITRACE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AGRITRACE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AGRITRACE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AGRITRACE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AGRITRACE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AGRITRACE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"AGRITRACE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"AGRITRACE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"AGRITRACE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"AGRITRACE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"AGRITRACE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGRITRACE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"AGRITRACE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"AGRITRACE_PUBSUB_EVENTS_TOPIC" default:"agritrace-domain-events"`
	EventsSubscription string `envconfig:"AGRITRACE_PUBSUB_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AGRITRACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AGRITRACE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AGRITRACE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SettlementConfig struct {
	// MinReward is the floor applied to each reward at payout time.
	MinReward uint64 `envconfig:"AGRITRACE_SETTLEMENT_MIN_REWARD" default:"10"`
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
