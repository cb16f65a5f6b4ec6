package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	License  LicenseConfig
	Frontend FrontendConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.License.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB reads only the App and DB groups, for tools that never serve licenses.
func LoadDB() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"LICENSEGATE_APP_ENV" default:"dev"`
	Port         string        `envconfig:"LICENSEGATE_APP_PORT" default:"3000"`
	LogLevel     string        `envconfig:"LICENSEGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool          `envconfig:"LICENSEGATE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool          `envconfig:"LICENSEGATE_AUTO_MIGRATE" default:"false"`
	ReadTimeout  time.Duration `envconfig:"LICENSEGATE_HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"LICENSEGATE_HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout  time.Duration `envconfig:"LICENSEGATE_HTTP_IDLE_TIMEOUT" default:"60s"`
	CORSOrigins  []string      `envconfig:"LICENSEGATE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LICENSEGATE_DB_DSN"`
	Driver string `envconfig:"LICENSEGATE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LICENSEGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"LICENSEGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LICENSEGATE_DB_USER"`
	LegacyPassword string `envconfig:"LICENSEGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LICENSEGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LICENSEGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LICENSEGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LICENSEGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSEGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LICENSEGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsMemory reports whether licenses are kept in process memory instead of a SQL database.
func (db DBConfig) IsMemory() bool {
	return strings.EqualFold(db.Driver, DBDriverMemory)
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL           string        `envconfig:"LICENSEGATE_REDIS_URL"`
	Address       string        `envconfig:"LICENSEGATE_REDIS_ADDR"`
	Password      string        `envconfig:"LICENSEGATE_REDIS_PASSWORD"`
	DB            int           `envconfig:"LICENSEGATE_REDIS_DB" default:"0"`
	PoolSize      int           `envconfig:"LICENSEGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns  int           `envconfig:"LICENSEGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout   time.Duration `envconfig:"LICENSEGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout   time.Duration `envconfig:"LICENSEGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout  time.Duration `envconfig:"LICENSEGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
	NotifyChannel string        `envconfig:"LICENSEGATE_REDIS_NOTIFY_CHANNEL" default:"license-issued"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// LicenseConfig carries the secrets and regime for key issuance. It is read once at startup.
type LicenseConfig struct {
	Regime                 string `envconfig:"LICENSEGATE_LICENSE_REGIME" default:"signed"`
	SigningSecret          string `envconfig:"LICENSEGATE_LICENSE_SECRET"`
	KeyPrefix              string `envconfig:"LICENSEGATE_LICENSE_PREFIX" default:"LIC"`
	AdminSecret            string `envconfig:"LICENSEGATE_ADMIN_SECRET" required:"true"`
	ValidateRequiresSecret bool   `envconfig:"LICENSEGATE_VALIDATE_REQUIRES_SECRET" default:"false"`
	ListLimit              int    `envconfig:"LICENSEGATE_LIST_LIMIT" default:"0"`
}

// Signed reports whether keys carry an HMAC tag and the store acts as a deny-list.
func (l LicenseConfig) Signed() bool {
	return strings.EqualFold(l.Regime, RegimeSigned)
}

var prefixRe = regexp.MustCompile(`^[A-Z0-9]{2,16}$`)

func (l *LicenseConfig) validate() error {
	l.Regime = strings.ToLower(strings.TrimSpace(l.Regime))
	if l.Regime != RegimeSigned && l.Regime != RegimeStateful {
		return fmt.Errorf("%s must be %q or %q", EnvLicenseRegime, RegimeSigned, RegimeStateful)
	}
	if l.Signed() && len(l.SigningSecret) < minSecretLen {
		return fmt.Errorf("%s must be at least %d characters when %s=%s", EnvLicenseSecret, minSecretLen, EnvLicenseRegime, RegimeSigned)
	}
	if len(l.AdminSecret) < minSecretLen {
		return fmt.Errorf("%s must be at least %d characters", EnvAdminSecret, minSecretLen)
	}
	l.KeyPrefix = strings.ToUpper(strings.TrimSpace(l.KeyPrefix))
	if !prefixRe.MatchString(l.KeyPrefix) {
		return fmt.Errorf("%s must be 2-16 upper-case letters or digits", EnvLicensePrefix)
	}
	if l.ListLimit < 0 {
		return fmt.Errorf("%s must not be negative", EnvListLimit)
	}
	return nil
}

// FrontendConfig configures the command front end (licensectl) that talks to the admin API.
type FrontendConfig struct {
	ServerURL   string        `envconfig:"LICENSEGATE_SERVER_URL" default:"http://localhost:3000"`
	AdminRoleID string        `envconfig:"LICENSEGATE_ADMIN_ROLE_ID"`
	AdminIDs    []string      `envconfig:"LICENSEGATE_ADMIN_IDS"`
	Timeout     time.Duration `envconfig:"LICENSEGATE_CLIENT_TIMEOUT" default:"10s"`
}

func (db *DBConfig) ensureDSN() error {
	switch strings.ToLower(db.Driver) {
	case DBDriverMemory:
		return nil
	case DBDriverSQLite:
		if db.DSN == "" {
			db.DSN = "licenses.db"
		}
		return nil
	case DBDriverPostgres:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvDBDriver, DBDriverPostgres, DBDriverSQLite, DBDriverMemory)
	}

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
