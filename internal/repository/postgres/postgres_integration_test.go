package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Проверяем соответствие интерфейсам
var (
	_ repository.CustomerRepository        = (*PostgresCustomerRepository)(nil)
	_ repository.CatalogRepository         = (*PostgresCatalogRepository)(nil)
	_ repository.OrderRepository           = (*PostgresOrderRepository)(nil)
	_ repository.SubscriptionRepository    = (*PostgresSubscriptionRepository)(nil)
	_ repository.NotificationLogRepository = (*PostgresNotificationLogRepository)(nil)
	_ repository.ReportingRepository       = (*ReportingRepository)(nil)
	_ identity.Index                       = (*PostgresCustomerRepository)(nil)
)

var today = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*pgxpool.Pool, *sqlx.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires docker")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := logger.NewNop()
	sqlDB, err := NewReportingDB(ctx, dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrationDB, err := NewReportingDB(ctx, dsn, log)
	require.NoError(t, err)
	require.NoError(t, MigrateUp(migrationDB.DB, log))
	require.NoError(t, MigrateUp(migrationDB.DB, log), "second run is a no-op")

	pool, err := NewConnection(ctx, dsn, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool, sqlDB
}

func seedProduct(t *testing.T, pool *pgxpool.Pool) (domain.Product, domain.PricingTier) {
	t.Helper()
	tier := domain.PricingTier{
		ID:              uuid.New(),
		Name:            "Quarterly",
		Price:           decimal.NewFromInt(300),
		DurationMonths:  3,
		DiscountPercent: decimal.NewFromInt(10),
		Features:        []string{"reports", "support"},
		Active:          true,
	}
	product := domain.Product{ID: uuid.New(), Name: "Payroll", Description: "Payroll suite", Active: true,
		Tiers: []domain.PricingTier{tier}}
	require.NoError(t, NewPostgresCatalogRepository(pool, logger.NewNop()).UpsertProduct(context.Background(), product))
	tier.ProductID = product.ID
	return product, tier
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	pool, sqlDB := setupTestDB(t)
	ctx := context.Background()
	log := logger.NewNop()

	customers := NewPostgresCustomerRepository(pool, log)
	catalog := NewPostgresCatalogRepository(pool, log)
	orders := NewPostgresOrderRepository(pool, log)
	subs := NewPostgresSubscriptionRepository(pool, log)
	notifications := NewPostgresNotificationLogRepository(pool, log)
	reporting := NewReportingRepository(sqlDB, log)

	product, tier := seedProduct(t, pool)

	// каталог
	products, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Len(t, products[0].Tiers, 1)
	assert.Equal(t, []string{"reports", "support"}, products[0].Tiers[0].Features)
	assert.True(t, products[0].Tiers[0].UnitPrice().Equal(decimal.NewFromInt(270)))

	p, tr, err := catalog.GetTier(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, p.ID)
	assert.Equal(t, 3, tr.DurationMonths)

	// клиенты
	customer, err := customers.Create(ctx, domain.Customer{Name: "Noura", Email: "Noura@Example.com", Phone: "+966501234567"})
	require.NoError(t, err)

	_, err = customers.Create(ctx, domain.Customer{Name: "Dup", Email: "noura@example.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	found, ok, err := identity.ResolveCustomer(ctx, customers, identity.Lookup{Phone: "0501234567"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, customer.ID, found.ID)

	found, err = customers.FindByEmail(ctx, "NOURA@example.com")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, found.ID)

	require.NoError(t, customers.LinkAuthAccount(ctx, customer.ID, "uid-9", "+966501234567"))
	found, err = customers.FindByAuthUserID(ctx, "uid-9")
	require.NoError(t, err)
	assert.Equal(t, "+966501234567", found.PhoneAuth)

	// заказ и активация
	line := domain.NewCartLine(product, tier, 2)
	order := domain.PendingOrder{
		Token:              uuid.New(),
		OrderID:            domain.NewOrderID(today),
		CustomerID:         customer.ID,
		Lines:              []domain.CartLine{line},
		Total:              line.Subtotal(),
		SettlementTotal:    decimal.RequireFromString("145.80"),
		SourceCurrency:     "SAR",
		SettlementCurrency: "USD",
		Status:             domain.OrderStatusCreated,
	}
	require.NoError(t, orders.CreatePendingOrder(ctx, order))
	require.NoError(t, orders.SetProviderOrderID(ctx, order.Token, "PP-123"))
	require.NoError(t, orders.UpdateOrderStatus(ctx, order.Token, domain.OrderStatusPaid))

	stored, err := orders.GetPendingOrder(ctx, order.Token)
	require.NoError(t, err)
	assert.Equal(t, "PP-123", stored.ProviderOrderID)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Lines[0].UnitPrice.Equal(decimal.NewFromInt(270)))

	sub := domain.Subscription{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		PricingTierID: tier.ID,
		StartDate:     today,
		EndDate:       domain.AddMonths(today, 3),
		Status:        domain.SubscriptionStatusActive,
		FinalPrice:    line.UnitPrice,
	}
	unit := domain.FulfillmentUnit{LineIndex: 0, UnitIndex: 0}
	_, err = orders.ActivateUnit(ctx, order.Token, unit, sub, domain.NewPaidInvoice(sub, today))
	require.NoError(t, err)

	replay := sub
	replay.ID = uuid.New()
	_, err = orders.ActivateUnit(ctx, order.Token, unit, replay, domain.NewPaidInvoice(replay, today))
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	list, err := subs.ListByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1, "rolled back unit leaves no subscription")
	assert.Equal(t, sub.ID, list[0].ID)
	assert.True(t, list[0].EndDate.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)))

	invoices, err := subs.ListInvoicesByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.NotNil(t, invoices[0].PaidDate)

	records, err := orders.ListFulfillment(ctx, order.Token)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, orders.UpdateOrderStatus(ctx, order.Token, domain.OrderStatusFulfilled))
	assert.ErrorIs(t, orders.UpdateOrderStatus(ctx, order.Token, domain.OrderStatusCreated), domain.ErrIllegalTransition)

	// уведомления
	expiring, err := subs.ListExpiring(ctx, domain.AddMonths(today, 3).AddDate(0, 0, -5), domain.AddMonths(today, 3))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "noura@example.com", strings.ToLower(expiring[0].CustomerEmail))
	assert.Equal(t, "Payroll", expiring[0].ProductName)

	require.NoError(t, notifications.Record(ctx, domain.NotificationLog{SubscriptionID: sub.ID, Day: today, CustomerID: customer.ID, Email: "x"}))
	assert.ErrorIs(t, notifications.Record(ctx, domain.NotificationLog{SubscriptionID: sub.ID, Day: today, CustomerID: customer.ID, Email: "x"}), domain.ErrDuplicate)
	notified, err := notifications.WasNotified(ctx, sub.ID, today)
	require.NoError(t, err)
	assert.True(t, notified)

	// заявки
	req, err := subs.CreateRequest(ctx, domain.SubscriptionRequest{CustomerID: customer.ID, PricingTierID: tier.ID, Notes: "upgrade"})
	require.NoError(t, err)
	assert.Equal(t, repository.SubscriptionRequestPending, req.Status)

	// отчеты
	yes := true
	custList, total, err := reporting.ListCustomers(ctx, repository.CustomerFilter{Subscribed: &yes, Page: repository.Page{Limit: 50}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, customer.ID, custList[0].ID)

	subList, total, err := reporting.ListSubscriptions(ctx, repository.SubscriptionFilter{Status: domain.SubscriptionStatusActive})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.True(t, subList[0].FinalPrice.Equal(decimal.NewFromInt(270)))

	invList, total, err := reporting.ListInvoices(ctx, repository.InvoiceFilter{Status: domain.InvoiceStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, invList)

	prodList, total, err := reporting.ListProducts(ctx, repository.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"reports", "support"}, prodList[0].Tiers[0].Features)

	a, err := reporting.Analytics(ctx, repository.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.TotalCustomers)
	assert.Equal(t, 1, a.SubscribedCustomers)
	assert.Equal(t, 1, a.ActiveSubscriptions)
	assert.Equal(t, 1, a.PaidInvoices)
	assert.True(t, a.Revenue.Equal(decimal.NewFromInt(270)))
}
