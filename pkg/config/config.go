package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	Outbox       OutboxConfig
	Events       EventsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Events.validate(cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.RateLimit.TrustedProxyPrefixes(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"*"`
	MetricsPort  string `envconfig:"STOREFRONT_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitList(a.CORSOrigins)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig carries the pricing and persistence policy for order placement.
type CheckoutConfig struct {
	DeliveryFee            decimal.Decimal `envconfig:"STOREFRONT_CHECKOUT_DELIVERY_FEE" default:"200"`
	FreeDeliveryThreshold  decimal.Decimal `envconfig:"STOREFRONT_CHECKOUT_FREE_DELIVERY_THRESHOLD" default:"0"`
	MaxOrderNumberAttempts int             `envconfig:"STOREFRONT_CHECKOUT_MAX_ORDER_NUMBER_ATTEMPTS" default:"5"`
	IdempotencyTTL         time.Duration   `envconfig:"STOREFRONT_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

// DeliveryFeeFor returns the delivery fee owed for the given subtotal.
func (c CheckoutConfig) DeliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if c.FreeDeliveryThreshold.IsPositive() && subtotal.GreaterThanOrEqual(c.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return c.DeliveryFee
}

func (c CheckoutConfig) validate() error {
	if c.DeliveryFee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvCheckoutDeliveryFee)
	}
	if c.FreeDeliveryThreshold.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvCheckoutFreeDeliveryThreshold)
	}
	if c.MaxOrderNumberAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutMaxOrderNumberAttempts)
	}
	return nil
}

type RateLimitConfig struct {
	TrackingWindow      time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_TRACKING_WINDOW" default:"1m"`
	TrackingIPLimit     int           `envconfig:"STOREFRONT_RATE_LIMIT_TRACKING_IP_LIMIT" default:"30"`
	TrackingOrderLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_TRACKING_ORDER_LIMIT" default:"10"`
	VoucherApplyWindow  time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_VOUCHER_WINDOW" default:"1m"`
	VoucherApplyIPLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_VOUCHER_IP_LIMIT" default:"60"`
	TrustedProxies      string        `envconfig:"STOREFRONT_RATE_LIMIT_TRUSTED_PROXIES"`
}

// TrustedProxyPrefixes parses the comma separated proxy list. Entries are
// CIDRs or bare addresses. Forwarding headers are ignored unless the peer
// matches one of them.
func (r RateLimitConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range splitList(r.TrustedProxies) {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetryBaseMS    int `envconfig:"STOREFRONT_OUTBOX_RETRY_BASE_MS" default:"2000"`
	RetryMaxMS     int `envconfig:"STOREFRONT_OUTBOX_RETRY_MAX_MS" default:"300000"`
	RetentionDays  int `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"30"`
}

// EventsConfig selects where order_placed events are forwarded.
type EventsConfig struct {
	Sink string `envconfig:"STOREFRONT_EVENTS_SINK" default:"none"`
}

func (e EventsConfig) validate(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(e.Sink)) {
	case EventsSinkNone, "":
		return nil
	case EventsSinkPubSub:
		if cfg.GCP.ProjectID == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvEventsSink, EventsSinkPubSub)
		}
		if cfg.PubSub.OrdersTopic == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvPubSubOrdersTopic, EnvEventsSink, EventsSinkPubSub)
		}
		return nil
	case EventsSinkKafka:
		if len(cfg.Kafka.BrokerList()) == 0 {
			return fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvEventsSink, EventsSinkKafka)
		}
		if cfg.Kafka.OrdersTopic == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvKafkaOrdersTopic, EnvEventsSink, EventsSinkKafka)
		}
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvEventsSink, EventsSinkNone, EventsSinkPubSub, EventsSinkKafka)
	}
}

// Normalized returns the lower-cased sink name, defaulting to none.
func (e EventsConfig) Normalized() string {
	sink := strings.ToLower(strings.TrimSpace(e.Sink))
	if sink == "" {
		return EventsSinkNone
	}
	return sink
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC"`
}

type KafkaConfig struct {
	Brokers      string        `envconfig:"STOREFRONT_KAFKA_BROKERS"`
	OrdersTopic  string        `envconfig:"STOREFRONT_KAFKA_ORDERS_TOPIC" default:"storefront.orders"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

// BrokerList returns the configured broker addresses.
func (k KafkaConfig) BrokerList() []string {
	return splitList(k.Brokers)
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1h"`
	LockTTL              time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
	LedgerDriftBatchSize int           `envconfig:"STOREFRONT_CRON_LEDGER_DRIFT_BATCH_SIZE" default:"500"`
	DLQReportBatchSize   int           `envconfig:"STOREFRONT_CRON_DLQ_REPORT_BATCH_SIZE" default:"200"`
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

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
