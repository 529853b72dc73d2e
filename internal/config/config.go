package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	AppPort     string
	IsProd      bool
	DemoMode    bool
	BaseURL     string
	CORSOrigins []string

	DB       DBConfig
	Redis    RedisConfig
	Elastic  ElasticConfig
	MinIO    MinIOConfig
	Scylla   ScyllaConfig
	Kafka    KafkaConfig
	SMTP     SMTPConfig
	OAuth    OAuthConfig
	Checkout CheckoutConfig

	StripeSecretKey   string
	JWTSecret         string
	SessionSecret     string
	InvoicePDFEnabled bool
	InvoiceFrontURL   string
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type DBConfig struct {
	// Driver is mysql or sqlite. With sqlite, Name is the database file.
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN builds the MySQL data source name used by gorm.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ElasticConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ScyllaConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
	CartTopic   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type OAuthConfig struct {
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
}

type CheckoutConfig struct {
	TaxRate               float64
	FreeShippingThreshold float64
	Currency              string
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Info("⚠️  No .env file found, using system environment")
	} else {
		logrus.Info("✅ .env loaded")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_DRIVER", DriverMySQL)
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "storefront")
	v.SetDefault("ELASTIC_INDEX", "products")
	v.SetDefault("MINIO_BUCKET", "storefront-images")
	v.SetDefault("KAFKA_ORDERS_TOPIC", "storefront.orders")
	v.SetDefault("KAFKA_CART_TOPIC", "storefront.cart")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "noreply@storefront.local")
	v.SetDefault("TAX_RATE", 0.2)
	v.SetDefault("FREE_SHIPPING_THRESHOLD", 50.0)
	v.SetDefault("CURRENCY", "eur")
	return v
}

// FromViper maps a configured viper instance to a Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:     v.GetString("APP_PORT"),
		IsProd:      v.GetBool("IS_PROD"),
		DemoMode:    v.GetBool("DEMO_MODE"),
		BaseURL:     strings.TrimRight(v.GetString("BASE_URL"), "/"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		DB: DBConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASS"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Elastic: ElasticConfig{
			URL:      v.GetString("ELASTIC_URL"),
			User:     v.GetString("ELASTIC_USER"),
			Password: v.GetString("ELASTIC_PASSWORD"),
			Index:    v.GetString("ELASTIC_INDEX"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Scylla: ScyllaConfig{
			Hosts:    splitList(v.GetString("SCYLLA_HOSTS")),
			Keyspace: v.GetString("SCYLLA_KEYSPACE"),
			Username: v.GetString("SCYLLA_USERNAME"),
			Password: v.GetString("SCYLLA_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			OrdersTopic: v.GetString("KAFKA_ORDERS_TOPIC"),
			CartTopic:   v.GetString("KAFKA_CART_TOPIC"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
			GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
			FacebookClientID:     v.GetString("FACEBOOK_CLIENT_ID"),
			FacebookClientSecret: v.GetString("FACEBOOK_CLIENT_SECRET"),
		},
		Checkout: CheckoutConfig{
			TaxRate:               v.GetFloat64("TAX_RATE"),
			FreeShippingThreshold: v.GetFloat64("FREE_SHIPPING_THRESHOLD"),
			Currency:              strings.ToLower(v.GetString("CURRENCY")),
		},
		StripeSecretKey:   v.GetString("STRIPE_SECRET_KEY"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		SessionSecret:     v.GetString("SESSION_SECRET"),
		InvoicePDFEnabled: v.GetBool("INVOICE_PDF_ENABLED"),
		InvoiceFrontURL:   v.GetString("INVOICE_FRONT_URL"),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.DemoMode {
		return nil
	}
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Name == "" {
			return fmt.Errorf("DB_NAME must point to the sqlite file")
		}
	case DriverMySQL, "":
		if c.DB.User == "" || c.DB.Name == "" {
			return fmt.Errorf("DB_USER and DB_NAME are required unless DEMO_MODE is set")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
