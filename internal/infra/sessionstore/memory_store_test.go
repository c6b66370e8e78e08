package sessionstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

func TestMemoryStore_CreateLookupRevoke(t *testing.T) {
	store := NewMemoryStore(4, 0)
	ctx := context.Background()

	token, err := store.Create(ctx, "u@x.com")
	require.NoError(t, err)
	require.Len(t, token, 36)

	email, ok, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u@x.com", email)

	require.NoError(t, store.Revoke(ctx, token))
	_, ok, err = store.Lookup(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)
	require.ErrorIs(t, store.Revoke(ctx, token), auth.ErrInvalidSession)
}

func TestMemoryStore_ShardCountRoundsUp(t *testing.T) {
	require.Len(t, NewMemoryStore(5, 0).shards, 8)
	require.Len(t, NewMemoryStore(0, 0).shards, defaultShards)
}

func TestMemoryStore_CollisionRetries(t *testing.T) {
	tokens := []string{"dup", "dup", "fresh"}
	var i int
	store := NewMemoryStore(2, 0, WithTokenSource(func() (string, error) {
		tok := tokens[i]
		i++
		return tok, nil
	}))
	ctx := context.Background()

	first, err := store.Create(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "dup", first)

	second, err := store.Create(ctx, "b@x.com")
	require.NoError(t, err)
	require.Equal(t, "fresh", second)

	email, ok, err := store.Lookup(ctx, "dup")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@x.com", email)
}

func TestMemoryStore_CollisionExhaustion(t *testing.T) {
	store := NewMemoryStore(1, 0, WithTokenSource(func() (string, error) {
		return "same", nil
	}))
	ctx := context.Background()
	_, err := store.Create(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = store.Create(ctx, "b@x.com")
	require.ErrorIs(t, err, errTokenSpaceExhausted)
}

func TestMemoryStore_TTLExpiryAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore(4, time.Minute, WithClock(clock))
	ctx := context.Background()

	expiring, err := store.Create(ctx, "a@x.com")
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	fresh, err := store.Create(ctx, "b@x.com")
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, ok, err := store.Lookup(ctx, expiring)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.Lookup(ctx, fresh)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(time.Minute)
	require.Equal(t, 1, store.Sweep(ctx))
	n, err := store.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.ErrorIs(t, store.Revoke(ctx, fresh), auth.ErrInvalidSession)
}

func TestMemoryStore_SweepWithoutTTL(t *testing.T) {
	store := NewMemoryStore(2, 0)
	_, err := store.Create(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Zero(t, store.Sweep(context.Background()))
}

func TestMemoryStore_RevokeAll(t *testing.T) {
	store := NewMemoryStore(8, 0)
	ctx := context.Background()
	for range 5 {
		_, err := store.Create(ctx, "a@x.com")
		require.NoError(t, err)
	}
	other, err := store.Create(ctx, "b@x.com")
	require.NoError(t, err)

	revoked, err := store.RevokeAll(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, 5, revoked)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, ok, err := store.Lookup(ctx, other)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStore_ConcurrentCreateSameEmail(t *testing.T) {
	store := NewMemoryStore(16, 0)
	ctx := context.Background()
	const n = 200

	tokens := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := store.Create(ctx, "same@x.com")
			if err == nil {
				tokens <- tok
			}
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]struct{}, n)
	for tok := range tokens {
		seen[tok] = struct{}{}
		email, ok, err := store.Lookup(ctx, tok)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "same@x.com", email)
	}
	require.Len(t, seen, n)

	var revokers sync.WaitGroup
	for tok := range seen {
		revokers.Add(1)
		go func() {
			defer revokers.Done()
			_ = store.Revoke(ctx, tok)
		}()
	}
	revokers.Wait()
	live, err := store.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, live)
}
