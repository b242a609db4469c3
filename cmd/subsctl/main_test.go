package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/config"
	"github.com/Dhoini/subscription-commerce/internal/app"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/notification"
	"github.com/Dhoini/subscription-commerce/internal/provisioning"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) CreateUser(_ context.Context, email, _, _ string) (string, error) {
	return "uid-" + email, nil
}

func testEnv(t *testing.T, db *repository.InMemoryDB) (*env, *bytes.Buffer) {
	t.Helper()
	log := logger.NewNop()
	out := &bytes.Buffer{}

	e := &env{
		log: log,
		cfg: func() (*config.Config, error) { return &config.Config{}, nil },
		app: func(context.Context, *config.Config) (*app.App, error) {
			return &app.App{
				Notifier: notification.NewExpiryNotifier(
					repository.NewInMemorySubscriptionRepository(db, log),
					repository.NewInMemoryNotificationLogRepository(db, log),
					mail.NopSender{Log: log}, nil, nil, 5, log,
				),
				Provisioning: provisioning.NewService(
					repository.NewInMemoryCustomerRepository(db, log),
					stubProvider{}, nil, nil, log,
				),
			}, nil
		},
	}
	return e, out
}

func execute(e *env, out *bytes.Buffer, args ...string) error {
	cmd := newRootCmd(e)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestNotifyExpiring(t *testing.T) {
	db := repository.NewInMemoryDB()
	tier := domain.PricingTier{ID: uuid.New(), Name: "Monthly", Price: decimal.NewFromInt(50), DurationMonths: 1, Active: true}
	db.SeedProduct(domain.Product{ID: uuid.New(), Name: "Fiber", Active: true, Tiers: []domain.PricingTier{tier}})
	customerID := uuid.New()
	db.SeedCustomer(domain.Customer{ID: customerID, Name: "Sara", Email: "sara@example.com"})
	end := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	db.SeedSubscription(domain.Subscription{
		ID: uuid.New(), CustomerID: customerID, PricingTierID: tier.ID,
		StartDate: end.AddDate(0, -1, 0), EndDate: end, Status: domain.SubscriptionStatusActive,
		FinalPrice: decimal.NewFromInt(50),
	})

	e, out := testEnv(t, db)
	require.NoError(t, execute(e, out, "notify-expiring", "--date", "2026-05-10"))

	var summary notification.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Sent)
}

func TestNotifyExpiring_InvalidDate(t *testing.T) {
	e, out := testEnv(t, repository.NewInMemoryDB())
	err := execute(e, out, "notify-expiring", "--date", "10/05/2026")
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestProvision(t *testing.T) {
	db := repository.NewInMemoryDB()
	id := uuid.New()
	db.SeedCustomer(domain.Customer{ID: id, Name: "Noura"})

	file := filepath.Join(t.TempDir(), "customers.json")
	body := `[{"id":"` + id.String() + `","name":"Noura","phone":"0501234567"}]`
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))

	e, out := testEnv(t, db)
	require.NoError(t, execute(e, out, "provision", "--file", file))

	var results []provisioning.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "+966501234567", results[0].Phone)
	assert.NotEmpty(t, results[0].Password)
}

func TestProvision_BadInput(t *testing.T) {
	e, out := testEnv(t, repository.NewInMemoryDB())
	assert.ErrorContains(t, execute(e, out, "provision"), "--file")

	file := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"id":`), 0o600))
	assert.ErrorContains(t, execute(e, out, "provision", "--file", file), "parse")
}

func TestMigrateDown_RejectsNonPositiveSteps(t *testing.T) {
	e, out := testEnv(t, repository.NewInMemoryDB())
	e.cfg = func() (*config.Config, error) {
		t.Fatal("configuration must not be loaded")
		return nil, nil
	}
	assert.ErrorContains(t, execute(e, out, "migrate", "down", "--steps", "0"), "--steps")
}
