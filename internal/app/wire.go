// Package app builds the object graph shared by the API server and paymentctl.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"github.com/fairwayhq/fairway-backend/internal/config"
	"github.com/fairwayhq/fairway-backend/internal/events"
	"github.com/fairwayhq/fairway-backend/internal/modules/order"
	"github.com/fairwayhq/fairway-backend/internal/modules/payment"
)

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *sql.DB
	Publisher events.Publisher

	Orders   order.Service
	Payments payment.Service

	// nil when checkout keys are not configured
	Encryptor *payment.CheckoutEncryptor
}

// NewLogger returns a JSON slog logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// New opens the database and event publisher and wires the services.
// Close releases both.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			db.Close()
			return nil, err
		}
		publisher = kp
	} else {
		logger.Warn("KAFKA_BROKERS not set, payment status events are dropped")
	}

	orderRepo := order.NewPostgresRepository(db)
	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Publisher: publisher,
		Orders:    order.NewService(orderRepo),
		Payments: payment.NewService(
			payment.NewPostgresStore(db),
			orderRepo,
			payment.NewMpesaClient(cfg.Mpesa),
			publisher,
			payment.Options{
				InitialDelay: cfg.Poll.InitialDelay,
				MaxAttempts:  cfg.Poll.MaxAttempts,
				BackoffBase:  cfg.Poll.BackoffBase,
				BackoffMax:   cfg.Poll.BackoffMax,
			},
			logger,
		),
	}
	if cfg.CheckoutEnabled() {
		a.Encryptor = payment.NewCheckoutEncryptor(cfg.Checkout)
	}
	return a, nil
}

func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error("close publisher", "err", err)
	}
	a.DB.Close()
}
