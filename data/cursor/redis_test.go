package cursor

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisCursorStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisCursorStore(client)
	ctx := context.Background()

	_, ok := store.GetCursor(ctx, "AAPL")
	require.False(t, ok)

	require.NoError(t, store.UpdateCursor(ctx, "AAPL", "page-7"))

	token, ok := store.GetCursor(ctx, "AAPL")
	require.True(t, ok)
	require.Equal(t, "page-7", token)

	require.NoError(t, store.UpdateCursor(ctx, "AAPL", "page-9"))
	token, _ = store.GetCursor(ctx, "AAPL")
	require.Equal(t, "page-9", token)
}

func TestRedisCursorStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	store := NewRedisCursorStore(client)
	_, ok := store.GetCursor(context.Background(), "AAPL")
	require.False(t, ok)
}
