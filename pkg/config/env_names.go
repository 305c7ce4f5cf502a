package config

// EnvPrefix is passed to envconfig; explicit envconfig tags already carry it.
const EnvPrefix = "VENDORA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "VENDORA_APP_ENV"
	EnvPort     = "VENDORA_APP_PORT"
	EnvLogLevel = "VENDORA_LOG_LEVEL"

	EnvDBDSN  = "VENDORA_DB_DSN"
	EnvDBHost = "VENDORA_DB_HOST"
	EnvDBUser = "VENDORA_DB_USER"
	EnvDBName = "VENDORA_DB_NAME"

	EnvRedisURL = "VENDORA_REDIS_URL"

	EnvJWTSecret  = "VENDORA_JWT_SECRET"
	EnvJWTIssuer  = "VENDORA_JWT_ISSUER"
	EnvJWTExpMins = "VENDORA_JWT_EXPIRATION_MINUTES"

	EnvGatewayAccessToken   = "VENDORA_GATEWAY_ACCESS_TOKEN"
	EnvGatewayWebhookSecret = "VENDORA_GATEWAY_WEBHOOK_SECRET"

	EnvGCPProjectID = "VENDORA_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic       = "VENDORA_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub         = "VENDORA_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubRefundsTopic      = "VENDORA_PUBSUB_REFUNDS_TOPIC"
	EnvPubSubRefundsSub        = "VENDORA_PUBSUB_REFUNDS_SUBSCRIPTION"
	EnvPubSubNotificationTopic = "VENDORA_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "VENDORA_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
