package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func skipIfNoRedis(t *testing.T) {
	t.Helper()
	if os.Getenv("REDIS_TEST_ADDR") == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis tests")
	}
}

func TestSingleInstance_SecondAcquireFails(t *testing.T) {
	skipIfNoRedis(t)
	ctx := context.Background()
	opts := Options{Addr: os.Getenv("REDIS_TEST_ADDR"), TTL: 2 * time.Second}

	a, err := New(ctx, "test-service", opts)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Acquire(ctx, "token-a"))
	defer a.Release(ctx)

	b, err := New(ctx, "test-service", opts)
	require.NoError(t, err)
	defer b.Close()
	err = b.Acquire(ctx, "token-b")
	require.ErrorIs(t, err, ErrAlreadyHeld)
}

func TestSingleInstance_ReleaseThenReacquire(t *testing.T) {
	skipIfNoRedis(t)
	ctx := context.Background()
	opts := Options{Addr: os.Getenv("REDIS_TEST_ADDR"), TTL: 2 * time.Second}

	a, err := New(ctx, "test-service-2", opts)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Acquire(ctx, "token-a"))
	require.NoError(t, a.Release(ctx))

	b, err := New(ctx, "test-service-2", opts)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Acquire(ctx, "token-b"))
	defer b.Release(ctx)
}
