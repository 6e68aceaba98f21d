package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "pimhub"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv  = "PIMHUB_APP_ENV"
	EnvAppPort = "PIMHUB_APP_PORT"

	EnvDBDSN  = "PIMHUB_DB_DSN"
	EnvDBHost = "PIMHUB_DB_HOST"
	EnvDBUser = "PIMHUB_DB_USER"
	EnvDBName = "PIMHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
