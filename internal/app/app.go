// Package app собирает зависимости приложения из конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/config"
	"github.com/Dhoini/subscription-commerce/internal/api/rest"
	"github.com/Dhoini/subscription-commerce/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-commerce/internal/cart"
	"github.com/Dhoini/subscription-commerce/internal/checkout"
	"github.com/Dhoini/subscription-commerce/internal/fulfillment"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/internal/kafka/producer"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/notification"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/internal/payment/paypal"
	"github.com/Dhoini/subscription-commerce/internal/payment/stripe"
	"github.com/Dhoini/subscription-commerce/internal/provisioning"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/internal/repository/postgres"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// catalogCacheTTL время жизни кеша каталога в Redis
const catalogCacheTTL = 5 * time.Minute

// paymentGateway провайдер оплаты целиком
type paymentGateway interface {
	payment.LinkGenerator
	payment.Capturer
}

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	Pool        *pgxpool.Pool
	ReportingDB *sqlx.DB
	Redis       *redis.Client
	Publisher   kafka.Publisher
	Metrics     metrics.CommerceMetrics

	Validator    identity.TokenValidator
	Sessions     session.Store
	Catalog      service.CatalogService
	Accounts     service.AccountService
	Carts        *cart.Service
	Checkout     *checkout.Service
	Fulfillment  *fulfillment.Service
	Provisioning *provisioning.Service
	Notifier     *notification.ExpiryNotifier
	Reports      repository.ReportingRepository

	closers []func()
}

// New подключается к хранилищам и создает сервисы.
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, Registry: prometheus.NewRegistry()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	a.Metrics = metrics.NewCommerceMetrics(a.Registry, log)

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}
	if err := a.openPublisher(ctx); err != nil {
		return nil, err
	}

	gateway, err := newGateway(cfg, log)
	if err != nil {
		return nil, err
	}

	provider, err := a.openIdentity(ctx)
	if err != nil {
		return nil, err
	}

	customers := postgres.NewPostgresCustomerRepository(a.Pool, log)
	orders := postgres.NewPostgresOrderRepository(a.Pool, log)
	subscriptions := postgres.NewPostgresSubscriptionRepository(a.Pool, log)
	journal := postgres.NewPostgresNotificationLogRepository(a.Pool, log)
	catalog := repository.NewCachedCatalogRepository(
		postgres.NewPostgresCatalogRepository(a.Pool, log),
		repository.NewRedisCacheRepository(a.Redis, catalogCacheTTL, log),
		log,
	)

	a.Sessions = session.NewRedisStore(a.Redis, cfg.Redis.SessionTTL(), log)
	a.Catalog = service.NewCatalogService(catalog, log)
	a.Accounts = service.NewAccountService(customers, subscriptions, catalog, log)
	a.Carts = cart.NewService(a.Sessions, catalog, log)
	a.Checkout = checkout.NewService(checkout.Dependencies{
		Store:     a.Sessions,
		Carts:     a.Carts,
		Customers: customers,
		Orders:    orders,
		Links:     gateway,
		Converter: payment.NewConverter(decimal.NewFromFloat(cfg.Payment.Rate)),
		Metrics:   a.Metrics,
	}, checkout.Options{
		Provider:           cfg.Payment.Provider,
		SourceCurrency:     cfg.Payment.SourceCurrency,
		SettlementCurrency: cfg.Payment.SettlementCurrency,
		ReturnURL:          cfg.Payment.ReturnURL,
		CancelURL:          cfg.Payment.CancelURL,
	}, log)
	a.Fulfillment = fulfillment.NewService(orders, gateway, a.Publisher, a.Metrics, log)
	a.Provisioning = provisioning.NewService(customers, provider, a.Publisher, a.Metrics, log)
	a.Notifier = notification.NewExpiryNotifier(subscriptions, journal, newSender(cfg, log), a.Publisher, a.Metrics, cfg.Notification.HorizonDays, log)
	a.Reports = postgres.NewReportingRepository(a.ReportingDB, log)

	ready = true
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	pool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)

	reporting, err := postgres.NewReportingDB(ctx, cfg.Database.GetDSN(), log)
	if err != nil {
		return fmt.Errorf("failed to open reporting database: %w", err)
	}
	a.ReportingDB = reporting
	a.closers = append(a.closers, func() { _ = reporting.Close() })

	if cfg.Database.MigrateOnStart {
		if err := postgres.MigrateUp(reporting.DB, log); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	client, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		return err
	}
	a.Redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	cfg, log := a.Config, a.Logger
	if !cfg.Kafka.Enabled {
		log.Infow("Kafka is disabled, events will not be published")
		a.Publisher = kafka.NopPublisher{}
		return nil
	}

	if cfg.Kafka.EnsureTopics {
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, log); err != nil {
			return fmt.Errorf("failed to ensure kafka topics: %w", err)
		}
	}

	var (
		publisher kafka.Publisher
		err       error
	)
	switch cfg.Kafka.Client {
	case "kafka-go":
		publisher, err = producer.NewWriterEventProducer(cfg.Kafka.Brokers, log)
	default:
		syncProducer, perr := kafka.NewSyncProducer(kafka.NewConfig(cfg.Kafka.Brokers), log)
		if perr != nil {
			return fmt.Errorf("failed to create kafka producer: %w", perr)
		}
		publisher = producer.NewKafkaEventProducer(syncProducer, log)
	}
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}

	a.Publisher = publisher
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			log.Warnw("Failed to close kafka producer", "error", err)
		}
	})
	return nil
}

// openIdentity настраивает проверку токенов и создание аккаунтов.
// Провайдер jwt не умеет создавать аккаунты.
func (a *App) openIdentity(ctx context.Context) (identity.Provider, error) {
	cfg := a.Config.Auth
	if cfg.Provider != "firebase" {
		if cfg.JWTSecret == "" {
			return nil, errors.New("auth.jwtsecret is required for the jwt provider")
		}
		a.Validator = identity.NewJWTValidator(cfg.JWTSecret)
		return identity.DisabledProvider{}, nil
	}

	client, err := identity.NewFirebaseAuth(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fb := identity.NewFirebaseProvider(client, a.Logger)
	a.Validator = fb
	return fb, nil
}

func newGateway(cfg *config.Config, log *logger.Logger) (paymentGateway, error) {
	switch cfg.Payment.Provider {
	case "stripe":
		if cfg.Stripe.APIKey == "" {
			return nil, errors.New("stripe.apikey is required for the stripe provider")
		}
		return stripe.NewClient(cfg.Stripe.APIKey, nil, log), nil
	default:
		if cfg.PayPal.ClientID == "" || cfg.PayPal.ClientSecret == "" {
			return nil, errors.New("paypal credentials are required for the paypal provider")
		}
		return paypal.NewClient(paypal.Config{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			BaseURL:      cfg.PayPal.BaseURL,
			Timeout:      time.Duration(cfg.Payment.TimeoutSeconds) * time.Second,
		}, log), nil
	}
}

func newSender(cfg *config.Config, log *logger.Logger) mail.Sender {
	if cfg.Mail.SendGridAPIKey == "" {
		log.Warnw("SendGrid API key is not set, expiry notifications will not be delivered")
		return mail.NopSender{Log: log}
	}
	return mail.NewSendGridClient(cfg.Mail.SendGridAPIKey, cfg.Mail.FromEmail, cfg.Mail.FromName, log)
}

// HealthChecks проверки зависимостей для /health
func (a *App) HealthChecks() map[string]handlers.Checker {
	return map[string]handlers.Checker{
		"postgres": a.Pool.Ping,
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
	}
}

// PoolSources пулы соединений для метрик процесса
func (a *App) PoolSources() map[string]metrics.PoolSource {
	return map[string]metrics.PoolSource{
		"postgres": func() metrics.PoolStats {
			st := a.Pool.Stat()
			return metrics.PoolStats{Total: int(st.TotalConns()), Idle: int(st.IdleConns()), InUse: int(st.AcquiredConns())}
		},
		"reporting": func() metrics.PoolStats {
			st := a.ReportingDB.Stats()
			return metrics.PoolStats{Total: st.OpenConnections, Idle: st.Idle, InUse: st.InUse}
		},
		"redis": func() metrics.PoolStats {
			st := a.Redis.PoolStats()
			return metrics.PoolStats{Total: int(st.TotalConns), Idle: int(st.IdleConns), InUse: int(st.TotalConns) - int(st.IdleConns)}
		},
	}
}

// RouterDependencies зависимости HTTP API
func (a *App) RouterDependencies() rest.Dependencies {
	return rest.Dependencies{
		Config:       a.Config,
		Registry:     a.Registry,
		Validator:    a.Validator,
		Sessions:     a.Sessions,
		Catalog:      a.Catalog,
		Accounts:     a.Accounts,
		Carts:        a.Carts,
		Checkout:     a.Checkout,
		Fulfillment:  a.Fulfillment,
		Provisioning: a.Provisioning,
		Notifier:     a.Notifier,
		Reports:      a.Reports,
		HealthChecks: a.HealthChecks(),
	}
}

// Close закрывает соединения в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
