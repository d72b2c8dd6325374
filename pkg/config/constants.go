package config

const (
	EnvPrefix = "AGRITRACE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AGRITRACE_DB_DSN"
	EnvDBHost = "AGRITRACE_DB_HOST"
	EnvDBUser = "AGRITRACE_DB_USER"
	EnvDBName = "AGRITRACE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
