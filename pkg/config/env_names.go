package config

const (
	EnvPrefix = "bistro"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BISTRO_DB_DSN"
	EnvDBHost = "BISTRO_DB_HOST"
	EnvDBUser = "BISTRO_DB_USER"
	EnvDBName = "BISTRO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
