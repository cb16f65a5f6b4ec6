package config

// EnvPrefix namespaces the nested struct lookups; every field also carries an explicit name.
const EnvPrefix = "LICENSEGATE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DBDriverMemory   = "memory"
)

const (
	RegimeSigned   = "signed"
	RegimeStateful = "stateful"
)

const minSecretLen = 16

const (
	EnvAppEnv   = "LICENSEGATE_APP_ENV"
	EnvPort     = "LICENSEGATE_APP_PORT"
	EnvLogLevel = "LICENSEGATE_LOG_LEVEL"

	EnvDBDSN    = "LICENSEGATE_DB_DSN"
	EnvDBDriver = "LICENSEGATE_DB_DRIVER"
	EnvDBHost   = "LICENSEGATE_DB_HOST"
	EnvDBUser   = "LICENSEGATE_DB_USER"
	EnvDBName   = "LICENSEGATE_DB_NAME"

	EnvRedisURL = "LICENSEGATE_REDIS_URL"

	EnvLicenseRegime          = "LICENSEGATE_LICENSE_REGIME"
	EnvLicenseSecret          = "LICENSEGATE_LICENSE_SECRET"
	EnvLicensePrefix          = "LICENSEGATE_LICENSE_PREFIX"
	EnvAdminSecret            = "LICENSEGATE_ADMIN_SECRET"
	EnvValidateRequiresSecret = "LICENSEGATE_VALIDATE_REQUIRES_SECRET"
	EnvListLimit              = "LICENSEGATE_LIST_LIMIT"

	EnvServerURL   = "LICENSEGATE_SERVER_URL"
	EnvAdminRoleID = "LICENSEGATE_ADMIN_ROLE_ID"
	EnvAdminIDs    = "LICENSEGATE_ADMIN_IDS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
