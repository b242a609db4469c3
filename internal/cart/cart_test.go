package cart

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/session"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(price int64, months int) (domain.Product, domain.PricingTier) {
	p := domain.Product{ID: uuid.New(), Name: "Fiber", Active: true}
	t := domain.PricingTier{
		ID:             uuid.New(),
		ProductID:      p.ID,
		Name:           "Monthly",
		Price:          decimal.NewFromInt(price),
		DurationMonths: months,
		Active:         true,
	}
	return p, t
}

func TestCart_AddMergesSameLine(t *testing.T) {
	p, tier := fixture(50, 1)
	var c Cart

	require.NoError(t, c.AddToCart(p, tier, 2))
	require.NoError(t, c.AddToCart(p, tier, 3))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.Equal(t, 5, c.ItemCount())
	assert.True(t, c.Total().Equal(decimal.NewFromInt(250)))
}

func TestCart_AddRejectsNonPositive(t *testing.T) {
	p, tier := fixture(50, 1)
	var c Cart

	assert.ErrorIs(t, c.AddToCart(p, tier, 0), domain.ErrInvalidInput)
	assert.ErrorIs(t, c.AddToCart(p, tier, -1), domain.ErrInvalidInput)
	assert.True(t, c.IsEmpty())
}

func TestCart_LineQuantityIsCapped(t *testing.T) {
	p, tier := fixture(50, 1)
	var c Cart

	assert.ErrorIs(t, c.AddToCart(p, tier, math.MaxInt), domain.ErrInvalidInput)
	assert.ErrorIs(t, c.AddToCart(p, tier, MaxLineQuantity+1), domain.ErrInvalidInput)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.AddToCart(p, tier, MaxLineQuantity-1))
	require.NoError(t, c.AddToCart(p, tier, 1))
	assert.ErrorIs(t, c.AddToCart(p, tier, 1), domain.ErrInvalidInput)
	assert.ErrorIs(t, c.AddToCart(p, tier, math.MaxInt), domain.ErrInvalidInput)
	assert.Equal(t, MaxLineQuantity, c.Lines[0].Quantity)

	assert.ErrorIs(t, c.UpdateQuantity(p.ID, tier.ID, MaxLineQuantity+1), domain.ErrInvalidInput)
	assert.Equal(t, MaxLineQuantity, c.Lines[0].Quantity)
	assert.True(t, c.Total().Equal(decimal.NewFromInt(50*MaxLineQuantity)))
}

func TestCart_UpdateQuantity(t *testing.T) {
	p, tier := fixture(30, 3)
	var c Cart
	require.NoError(t, c.AddToCart(p, tier, 1))

	require.NoError(t, c.UpdateQuantity(p.ID, tier.ID, 4))
	assert.Equal(t, 4, c.Lines[0].Quantity)

	require.NoError(t, c.UpdateQuantity(p.ID, tier.ID, 0))
	assert.True(t, c.IsEmpty())

	err := c.UpdateQuantity(p.ID, tier.ID, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCart_RemoveAndClear(t *testing.T) {
	p1, t1 := fixture(10, 1)
	p2, t2 := fixture(20, 12)
	var c Cart
	require.NoError(t, c.AddToCart(p1, t1, 1))
	require.NoError(t, c.AddToCart(p2, t2, 1))

	c.RemoveFromCart(p1.ID, t1.ID)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, t2.ID, c.Lines[0].PricingTierID)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}

// Для любой последовательности операций сумма равна Σ(unit_price × quantity)
// и в корзине нет позиций с quantity <= 0.
func TestCart_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	type pair struct {
		p domain.Product
		t domain.PricingTier
	}
	var catalog []pair
	for i := 0; i < 4; i++ {
		p, tier := fixture(int64(5+i*7), i+1)
		catalog = append(catalog, pair{p, tier})
	}

	for run := 0; run < 200; run++ {
		var c Cart
		for step := 0; step < 30; step++ {
			item := catalog[rng.Intn(len(catalog))]
			qty := rng.Intn(7) - 2
			switch rng.Intn(3) {
			case 0:
				_ = c.AddToCart(item.p, item.t, qty)
			case 1:
				_ = c.UpdateQuantity(item.p.ID, item.t.ID, qty)
			case 2:
				c.RemoveFromCart(item.p.ID, item.t.ID)
			}
		}

		expected := decimal.Zero
		count := 0
		seen := map[uuid.UUID]bool{}
		for _, line := range c.Lines {
			require.Greater(t, line.Quantity, 0)
			require.LessOrEqual(t, line.Quantity, MaxLineQuantity)
			require.False(t, seen[line.PricingTierID], "duplicate line")
			seen[line.PricingTierID] = true
			expected = expected.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
			count += line.Quantity
		}
		require.True(t, expected.Equal(c.Total()))
		require.Equal(t, count, c.ItemCount())
	}
}

type stubCatalog struct {
	product domain.Product
	tier    domain.PricingTier
}

func (s stubCatalog) GetTier(_ context.Context, id uuid.UUID) (domain.Product, domain.PricingTier, error) {
	if id != s.tier.ID {
		return domain.Product{}, domain.PricingTier{}, domain.NewNotFoundError("pricing tier", id.String())
	}
	return s.product, s.tier, nil
}

func TestService_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	p, tier := fixture(50, 1)
	store := session.NewMemoryStore()
	svc := NewService(store, stubCatalog{p, tier}, logger.NewNop())

	_, err := svc.AddToCart(ctx, "sid", p.ID, tier.ID, 2)
	require.NoError(t, err)

	// новый сервис поверх того же хранилища видит корзину
	other := NewService(store, stubCatalog{p, tier}, logger.NewNop())
	c, err := other.Get(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)
	assert.True(t, c.Lines[0].UnitPrice.Equal(decimal.NewFromInt(50)))

	c, err = svc.UpdateQuantity(ctx, "sid", p.ID, tier.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.ItemCount())

	c, err = svc.RemoveFromCart(ctx, "sid", p.ID, tier.ID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	_, err = svc.AddToCart(ctx, "sid", p.ID, tier.ID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "sid"))
	c, err = svc.Get(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestService_RejectsQuantityOverLimit(t *testing.T) {
	ctx := context.Background()
	p, tier := fixture(50, 1)
	svc := NewService(session.NewMemoryStore(), stubCatalog{p, tier}, logger.NewNop())

	_, err := svc.AddToCart(ctx, "sid", p.ID, tier.ID, 60)
	require.NoError(t, err)

	_, err = svc.AddToCart(ctx, "sid", p.ID, tier.ID, 41)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.UpdateQuantity(ctx, "sid", p.ID, tier.ID, MaxLineQuantity+1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	c, err := svc.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 60, c.ItemCount())
}

func TestService_AddRejectsMismatchedOrInactiveTier(t *testing.T) {
	ctx := context.Background()
	p, tier := fixture(50, 1)
	svc := NewService(session.NewMemoryStore(), stubCatalog{p, tier}, logger.NewNop())

	_, err := svc.AddToCart(ctx, "sid", uuid.New(), tier.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.AddToCart(ctx, "sid", p.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tier.Active = false
	svc = NewService(session.NewMemoryStore(), stubCatalog{p, tier}, logger.NewNop())
	_, err = svc.AddToCart(ctx, "sid", p.ID, tier.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	p, tier := fixture(50, 1)
	svc := NewService(session.NewMemoryStore(), stubCatalog{p, tier}, logger.NewNop())

	_, err := svc.AddToCart(ctx, "a", p.ID, tier.ID, 1)
	require.NoError(t, err)

	c, err := svc.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
