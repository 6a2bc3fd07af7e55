package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements only the commands the registry sends.
type fakeRedis struct {
	goredis.Cmdable
	sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]time.Duration)}
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *goredis.IntCmd {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return goredis.NewIntResult(0, f.err)
	}
	var n int64
	for _, key := range keys {
		if _, ok := f.keys[key]; ok {
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.keys[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func TestProcessedEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("Mark and look up", func(t *testing.T) {
		client := newFakeRedis()
		registry := NewProcessedEvents(client, time.Hour)
		eventID := uuid.New()

		processed, err := registry.IsProcessed(ctx, eventID)
		require.NoError(t, err)
		require.False(t, processed)

		require.NoError(t, registry.MarkProcessed(ctx, eventID))

		processed, err = registry.IsProcessed(ctx, eventID)
		require.NoError(t, err)
		require.True(t, processed)
		require.Equal(t, time.Hour, client.keys["orderservice:restaurant-event:"+eventID.String()])

		processed, err = registry.IsProcessed(ctx, uuid.New())
		require.NoError(t, err)
		require.False(t, processed)
	})

	t.Run("Redis errors are returned", func(t *testing.T) {
		client := newFakeRedis()
		client.err = errors.New("connection refused")
		registry := NewProcessedEvents(client, time.Hour)

		_, err := registry.IsProcessed(ctx, uuid.New())
		require.Error(t, err)
		require.Error(t, registry.MarkProcessed(ctx, uuid.New()))
	})
}
