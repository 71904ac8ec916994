package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Features FeatureFlags
	Log      LogConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	RunMigrations bool
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type MongoConfig struct {
	URI             string
	Database        string
	CartsCollection string
	ConnectTimeout  time.Duration
}

type RedisConfig struct {
	Host           string
	Port           int
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers       []string
	CheckoutTopic string
}

// GatewayConfig holds Razorpay credentials and the outbound call budget.
type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// CheckoutConfig holds the pricing and ledger constants.
type CheckoutConfig struct {
	ServiceFeeRate  float64
	AmountTolerance float64
	Currency        string
	PaymentMethod   string
	EcoBadge        string
}

type FeatureFlags struct {
	EnableCheckoutEvents bool
	EnableMetrics        bool
}

type LogConfig struct {
	Level  string
	Format string
}

var defaults = map[string]interface{}{
	"SERVER_PORT":             8000,
	"SERVER_READ_TIMEOUT":     30,
	"SERVER_WRITE_TIMEOUT":    30,
	"SERVER_SHUTDOWN_TIMEOUT": 30,

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "repurpose",
	"DB_PASSWORD":       "repurpose",
	"DB_NAME":           "repurpose_checkout",
	"DB_SSLMODE":        "disable",
	"DB_MAX_OPEN_CONNS": 25,
	"DB_MAX_IDLE_CONNS": 5,
	"DB_MAX_LIFETIME":   300,
	"DB_RUN_MIGRATIONS": true,

	"MONGO_URI":              "mongodb://localhost:27017",
	"MONGO_DATABASE":         "repurpose-hub",
	"MONGO_CARTS_COLLECTION": "cart",
	"MONGO_CONNECT_TIMEOUT":  10,

	"REDIS_HOST":                    "localhost",
	"REDIS_PORT":                    6379,
	"REDIS_PASSWORD":                "",
	"REDIS_DB":                      0,
	"REDIS_IDEMPOTENCY_TTL_MINUTES": 30,

	"KAFKA_BROKERS":        "localhost:9092",
	"KAFKA_CHECKOUT_TOPIC": "checkout-events",

	"RAZORPAY_BASE_URL":   "https://api.razorpay.com",
	"RAZORPAY_KEY_ID":     "",
	"RAZORPAY_KEY_SECRET": "",
	"GATEWAY_TIMEOUT":     10,

	"CHECKOUT_SERVICE_FEE_RATE": 0.20,
	"CHECKOUT_AMOUNT_TOLERANCE": 0.01,
	"CHECKOUT_CURRENCY":         "INR",
	"CHECKOUT_PAYMENT_METHOD":   "razorpay",
	"CHECKOUT_ECO_BADGE":        "Eco Shopper",
	"FEATURE_CHECKOUT_EVENTS":   false,
	"FEATURE_METRICS":           true,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

// Load reads configuration from defaults, an optional CONFIG_FILE and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	seconds := func(key string) time.Duration {
		return time.Duration(v.GetInt(key)) * time.Second
	}

	return &Config{
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     seconds("SERVER_READ_TIMEOUT"),
			WriteTimeout:    seconds("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: seconds("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetInt("DB_PORT"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			Name:          v.GetString("DB_NAME"),
			SSLMode:       v.GetString("DB_SSLMODE"),
			MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxLifetime:   seconds("DB_MAX_LIFETIME"),
			RunMigrations: v.GetBool("DB_RUN_MIGRATIONS"),
		},
		Mongo: MongoConfig{
			URI:             v.GetString("MONGO_URI"),
			Database:        v.GetString("MONGO_DATABASE"),
			CartsCollection: v.GetString("MONGO_CARTS_COLLECTION"),
			ConnectTimeout:  seconds("MONGO_CONNECT_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:           v.GetString("REDIS_HOST"),
			Port:           v.GetInt("REDIS_PORT"),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			IdempotencyTTL: time.Duration(v.GetInt("REDIS_IDEMPOTENCY_TTL_MINUTES")) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			CheckoutTopic: v.GetString("KAFKA_CHECKOUT_TOPIC"),
		},
		Gateway: GatewayConfig{
			BaseURL:   strings.TrimRight(v.GetString("RAZORPAY_BASE_URL"), "/"),
			KeyID:     v.GetString("RAZORPAY_KEY_ID"),
			KeySecret: v.GetString("RAZORPAY_KEY_SECRET"),
			Timeout:   seconds("GATEWAY_TIMEOUT"),
		},
		Checkout: CheckoutConfig{
			ServiceFeeRate:  v.GetFloat64("CHECKOUT_SERVICE_FEE_RATE"),
			AmountTolerance: v.GetFloat64("CHECKOUT_AMOUNT_TOLERANCE"),
			Currency:        v.GetString("CHECKOUT_CURRENCY"),
			PaymentMethod:   v.GetString("CHECKOUT_PAYMENT_METHOD"),
			EcoBadge:        v.GetString("CHECKOUT_ECO_BADGE"),
		},
		Features: FeatureFlags{
			EnableCheckoutEvents: v.GetBool("FEATURE_CHECKOUT_EVENTS"),
			EnableMetrics:        v.GetBool("FEATURE_METRICS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
