package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
)

// setupTestAdapter creates an adapter connected to a miniredis instance
func setupTestAdapter(t *testing.T) (*Adapter, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	a, err := New(&redis.Options{Addr: mr.Addr()}, "mixer:")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return a, mr
}

func listEntry(name, value string) *instance.Instance {
	return &instance.Instance{
		Name:     name,
		Template: "listentry",
		Fields:   schema.MustValue(map[string]interface{}{"value": value}),
	}
}

func TestNew(t *testing.T) {
	t.Run("rejects empty address", func(t *testing.T) {
		_, err := New(&redis.Options{}, "")
		assert.Error(t, err)
	})

	t.Run("pings the server", func(t *testing.T) {
		a, _ := setupTestAdapter(t)
		assert.NoError(t, a.HealthCheck(context.Background()))
	})
}

func TestHandle(t *testing.T) {
	t.Run("appends entries in order", func(t *testing.T) {
		a, mr := setupTestAdapter(t)
		a.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
		ctx := context.Background()
		h := &schema.Handler{Name: "audit", Adapter: Name}

		err := a.Handle(ctx, h, []*instance.Instance{listEntry("a", "1"), listEntry("b", "2")})
		require.NoError(t, err)
		require.NoError(t, a.Handle(ctx, h, []*instance.Instance{listEntry("a", "3")}))

		items, err := mr.List("mixer:audit")
		require.NoError(t, err)
		assert.Len(t, items, 3)

		recs, err := a.Records(ctx, h)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "a", recs[0].Instance)
		assert.Equal(t, "b", recs[1].Instance)
		assert.Equal(t, "3", recs[2].Fields["value"])
		assert.Equal(t, "audit", recs[2].Handler)
	})

	t.Run("honors key and max_len params", func(t *testing.T) {
		a, mr := setupTestAdapter(t)
		ctx := context.Background()
		h := &schema.Handler{
			Name:    "audit",
			Adapter: Name,
			Params: schema.MustValue(map[string]interface{}{
				"key":     "events",
				"max_len": 2,
			}),
		}
		assert.Equal(t, "mixer:events", a.Key(h))

		for _, v := range []string{"1", "2", "3"} {
			require.NoError(t, a.Handle(ctx, h, []*instance.Instance{listEntry("x", v)}))
		}

		items, err := mr.List("mixer:events")
		require.NoError(t, err)
		assert.Len(t, items, 2)

		recs, err := a.Records(ctx, h)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "2", recs[0].Fields["value"])
		assert.Equal(t, "3", recs[1].Fields["value"])
	})

	t.Run("no instances is a no-op", func(t *testing.T) {
		a, mr := setupTestAdapter(t)
		require.NoError(t, a.Handle(context.Background(), &schema.Handler{Name: "audit"}, nil))
		assert.False(t, mr.Exists("mixer:audit"))
	})

	t.Run("reports unreachable server", func(t *testing.T) {
		a, mr := setupTestAdapter(t)
		mr.Close()
		err := a.Handle(context.Background(), &schema.Handler{Name: "audit"}, []*instance.Instance{listEntry("a", "1")})
		assert.Error(t, err)
		assert.Error(t, a.HealthCheck(context.Background()))
	})
}
