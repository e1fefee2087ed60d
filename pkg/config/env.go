package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EventsSinkNone   = "none"
	EventsSinkPubSub = "pubsub"
	EventsSinkKafka  = "kafka"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvCheckoutDeliveryFee            = "STOREFRONT_CHECKOUT_DELIVERY_FEE"
	EnvCheckoutFreeDeliveryThreshold  = "STOREFRONT_CHECKOUT_FREE_DELIVERY_THRESHOLD"
	EnvCheckoutMaxOrderNumberAttempts = "STOREFRONT_CHECKOUT_MAX_ORDER_NUMBER_ATTEMPTS"

	EnvRateLimitTrustedProxies = "STOREFRONT_RATE_LIMIT_TRUSTED_PROXIES"

	EnvEventsSink        = "STOREFRONT_EVENTS_SINK"
	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvKafkaBrokers      = "STOREFRONT_KAFKA_BROKERS"
	EnvKafkaOrdersTopic  = "STOREFRONT_KAFKA_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
