package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config структура конфигурации приложения
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	PayPal       PayPalConfig       `mapstructure:"paypal"`
	Stripe       StripeConfig       `mapstructure:"stripe"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Mail         MailConfig         `mapstructure:"mail"`
	Notification NotificationConfig `mapstructure:"notification"`
	PublicAPI    PublicAPIConfig    `mapstructure:"publicapi"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string   `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"readtimeout"`
	WriteTimeout    int      `mapstructure:"writetimeout"`
	ShutdownTimeout int      `mapstructure:"shutdowntimeout"`
	GinMode         string   `mapstructure:"ginmode"`
	CORSOrigins     []string `mapstructure:"corsorigins"`
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrateOnStart bool   `mapstructure:"migrateonstart"`
}

// RedisConfig конфигурация Redis (сессии и кеш каталога)
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	SessionTTLHrs int    `mapstructure:"sessionttlhours"`
}

// KafkaConfig конфигурация публикации событий
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Client       string   `mapstructure:"client"` // sarama или kafka-go
	Brokers      []string `mapstructure:"brokers"`
	EnsureTopics bool     `mapstructure:"ensuretopics"`
}

// PaymentConfig общие параметры оплаты
type PaymentConfig struct {
	Provider           string  `mapstructure:"provider"`
	SourceCurrency     string  `mapstructure:"sourcecurrency"`
	SettlementCurrency string  `mapstructure:"settlementcurrency"`
	Rate               float64 `mapstructure:"rate"`
	ReturnURL          string  `mapstructure:"returnurl"`
	CancelURL          string  `mapstructure:"cancelurl"`
	TimeoutSeconds     int     `mapstructure:"timeoutseconds"`
}

// PayPalConfig конфигурация PayPal REST API
type PayPalConfig struct {
	ClientID     string `mapstructure:"clientid"`
	ClientSecret string `mapstructure:"clientsecret"`
	BaseURL      string `mapstructure:"baseurl"`
}

// StripeConfig конфигурация Stripe
type StripeConfig struct {
	APIKey string `mapstructure:"apikey"`
}

// AuthConfig конфигурация провайдера идентификации
type AuthConfig struct {
	Provider                string   `mapstructure:"provider"`
	JWTSecret               string   `mapstructure:"jwtsecret"`
	FirebaseProjectID       string   `mapstructure:"firebaseprojectid"`
	FirebaseCredentialsFile string   `mapstructure:"firebasecredentialsfile"`
	FirebaseCredentialsJSON string   `mapstructure:"firebasecredentialsjson"`
	AdminEmails             []string `mapstructure:"adminemails"`
}

// MailConfig конфигурация SendGrid
type MailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgridapikey"`
	FromEmail      string `mapstructure:"fromemail"`
	FromName       string `mapstructure:"fromname"`
}

// NotificationConfig конфигурация уведомлений об истечении подписок
type NotificationConfig struct {
	HorizonDays int `mapstructure:"horizondays"`
}

// PublicAPIConfig ключи внешнего REST API
type PublicAPIConfig struct {
	DemoKey    string `mapstructure:"demokey"`
	LivePrefix string `mapstructure:"liveprefix"`
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetURL возвращает строку подключения в формате URL (для golang-migrate)
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// SessionTTL время жизни сессии корзины
func (c *RedisConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHrs) * time.Hour
}

var defaults = map[string]any{
	"server.port":            "8080",
	"server.readtimeout":     15,
	"server.writetimeout":    15,
	"server.shutdowntimeout": 30,
	"server.ginmode":         "debug",
	"server.corsorigins":     []string{"http://localhost:5173"},

	"database.host":           "localhost",
	"database.port":           5432,
	"database.user":           "postgres",
	"database.password":       "postgres",
	"database.name":           "subscriptions",
	"database.sslmode":        "disable",
	"database.migrateonstart": false,

	"redis.addr":            "localhost:6379",
	"redis.password":        "",
	"redis.db":              0,
	"redis.sessionttlhours": 24 * 7,

	"kafka.enabled":      false,
	"kafka.client":       "sarama",
	"kafka.brokers":      []string{"localhost:9092"},
	"kafka.ensuretopics": false,

	"payment.provider":           "paypal",
	"payment.sourcecurrency":     "SAR",
	"payment.settlementcurrency": "USD",
	"payment.rate":               0.27,
	"payment.returnurl":          "http://localhost:8080/api/v1/checkout/return",
	"payment.cancelurl":          "http://localhost:5173/checkout",
	"payment.timeoutseconds":     15,

	"paypal.clientid":     "",
	"paypal.clientsecret": "",
	"paypal.baseurl":      "https://api-m.sandbox.paypal.com",

	"stripe.apikey": "",

	"auth.provider":                "jwt",
	"auth.jwtsecret":               "",
	"auth.firebaseprojectid":       "",
	"auth.firebasecredentialsfile": "",
	"auth.firebasecredentialsjson": "",
	"auth.adminemails":             []string{},

	"mail.sendgridapikey": "",
	"mail.fromemail":      "no-reply@example.com",
	"mail.fromname":       "Subscriptions",

	"notification.horizondays": 5,

	"publicapi.demokey":    "demo_key_12345",
	"publicapi.liveprefix": "live_key_",

	"logging.level": "info",
}

// Load загружает конфигурацию из .env, config.yml и переменных окружения.
// Переменные окружения имеют вид SECTION_KEY, например DATABASE_HOST или PAYPAL_CLIENTID.
func Load() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	if c.Payment.Rate <= 0 {
		return fmt.Errorf("payment.rate must be positive, got %v", c.Payment.Rate)
	}
	switch c.Payment.Provider {
	case "paypal", "stripe":
	default:
		return fmt.Errorf("unsupported payment provider %q", c.Payment.Provider)
	}
	switch c.Auth.Provider {
	case "jwt", "firebase":
	default:
		return fmt.Errorf("unsupported auth provider %q", c.Auth.Provider)
	}
	switch c.Kafka.Client {
	case "sarama", "kafka-go":
	default:
		return fmt.Errorf("unsupported kafka client %q", c.Kafka.Client)
	}
	if c.Notification.HorizonDays < 0 {
		return fmt.Errorf("notification.horizondays must not be negative")
	}
	return nil
}
