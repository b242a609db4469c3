package session

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, time.Hour, logger.NewNop()),
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "k", []byte("v1")))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, s.Set(ctx, "k", []byte("v2")))
			got, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type payload struct {
		Step string `json:"step"`
	}

	_, found, err := GetJSON[payload](ctx, s, CheckoutKey("sid"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, s, CheckoutKey("sid"), payload{Step: "review"}))
	got, found, err := GetJSON[payload](ctx, s, CheckoutKey("sid"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "review", got.Step)

	require.NoError(t, s.Set(ctx, "bad", []byte("{")))
	_, _, err = GetJSON[payload](ctx, s, "bad")
	assert.Error(t, err)
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, time.Minute, logger.NewNop())
	require.NoError(t, s.Set(context.Background(), CartKey("abc"), []byte("[]")))

	assert.True(t, mr.Exists("session:cart:abc"))
	assert.Equal(t, time.Minute, mr.TTL("session:cart:abc"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(context.Background(), CartKey("abc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(context.Background(), "k", buf))
	buf[0] = 'x'

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
