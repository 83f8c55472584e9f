package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the API and the ops CLI need at startup.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string

	Mpesa    MpesaConfig
	Poll     PollConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
}

type MpesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PartyB          string
	Passkey         string
	CallbackURL     string // may contain {invoice}
	TransactionType string
	Timeout         time.Duration
}

type PollConfig struct {
	InitialDelay time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CheckoutConfig struct {
	IVKey       string
	SecretKey   string
	AccessKey   string
	RedirectURL string
}

var defaults = map[string]any{
	"APP_PORT":               "8080",
	"LOG_LEVEL":              "info",
	"MPESA_BASE_URL":         "https://sandbox.safaricom.co.ke",
	"MPESA_TRANSACTION_TYPE": "CustomerPayBillOnline",
	"MPESA_HTTP_TIMEOUT":     "20s",
	"POLL_INITIAL_DELAY":     "20s",
	"POLL_MAX_ATTEMPTS":      3,
	"POLL_BACKOFF_BASE":      "2s",
	"POLL_BACKOFF_MAX":       "30s",
	"KAFKA_TOPIC":            "payment.status_changed",
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; deployed environments set real variables
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	cfg := &Config{
		Port:        v.GetString("APP_PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Mpesa: MpesaConfig{
			BaseURL:         strings.TrimRight(v.GetString("MPESA_BASE_URL"), "/"),
			ConsumerKey:     v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  v.GetString("MPESA_CONSUMER_SECRET"),
			ShortCode:       v.GetString("MPESA_SHORTCODE"),
			PartyB:          v.GetString("MPESA_PARTY_B"),
			Passkey:         v.GetString("MPESA_PASSKEY"),
			CallbackURL:     v.GetString("MPESA_CALLBACK_URL"),
			TransactionType: v.GetString("MPESA_TRANSACTION_TYPE"),
			Timeout:         v.GetDuration("MPESA_HTTP_TIMEOUT"),
		},
		Poll: PollConfig{
			InitialDelay: v.GetDuration("POLL_INITIAL_DELAY"),
			MaxAttempts:  v.GetInt("POLL_MAX_ATTEMPTS"),
			BackoffBase:  v.GetDuration("POLL_BACKOFF_BASE"),
			BackoffMax:   v.GetDuration("POLL_BACKOFF_MAX"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Checkout: CheckoutConfig{
			IVKey:       v.GetString("CHECKOUT_IV_KEY"),
			SecretKey:   v.GetString("CHECKOUT_SECRET_KEY"),
			AccessKey:   v.GetString("CHECKOUT_ACCESS_KEY"),
			RedirectURL: v.GetString("CHECKOUT_REDIRECT_URL"),
		},
	}

	if cfg.Mpesa.PartyB == "" {
		cfg.Mpesa.PartyB = cfg.Mpesa.ShortCode
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Poll.MaxAttempts < 1 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Mpesa.Timeout <= 0 {
		errs = append(errs, errors.New("MPESA_HTTP_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// CheckoutEnabled reports whether hosted-checkout encryption keys are configured.
func (c *Config) CheckoutEnabled() bool {
	return c.Checkout.IVKey != "" && c.Checkout.SecretKey != ""
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
