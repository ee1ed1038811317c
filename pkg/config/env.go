package config

// EnvPrefix namespaces every environment variable the connector reads.
const EnvPrefix = "CONNECTOR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CONNECTOR_DB_DSN"
	EnvDBHost = "CONNECTOR_DB_HOST"
	EnvDBUser = "CONNECTOR_DB_USER"
	EnvDBName = "CONNECTOR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
