package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, time.Hour), mr
}

func TestReserveThenReplay(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	record, won, err := store.Reserve(ctx, "key-1", "hash-a")
	require.NoError(t, err)
	assert.True(t, won)
	assert.Nil(t, record)

	require.NoError(t, store.Save(ctx, "key-1", "hash-a", 201, []byte(`{"id":"abc"}`)))

	record, won, err = store.Reserve(ctx, "key-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, won)
	require.NotNil(t, record)
	assert.Equal(t, 201, record.Status)
	assert.JSONEq(t, `{"id":"abc"}`, string(record.Body))
}

func TestReserveHashMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, won, err := store.Reserve(ctx, "key-2", "hash-a")
	require.NoError(t, err)
	require.True(t, won)

	// a different request fingerprint conflicts while the first is pending
	_, _, err = store.Reserve(ctx, "key-2", "hash-b")
	assert.ErrorIs(t, err, ErrHashMismatch)

	require.NoError(t, store.Save(ctx, "key-2", "hash-a", 201, []byte(`{}`)))

	// and still conflicts after it completed
	_, _, err = store.Reserve(ctx, "key-2", "hash-b")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestReserveInFlight(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, won, err := store.Reserve(ctx, "key-3", "hash-a")
	require.NoError(t, err)
	require.True(t, won)

	_, _, err = store.Reserve(ctx, "key-3", "hash-a")
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, won, err := store.Reserve(ctx, "key-4", "hash-a")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, store.Release(ctx, "key-4"))

	_, won, err = store.Reserve(ctx, "key-4", "hash-a")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestAbandonedReservationExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, won, err := store.Reserve(ctx, "key-5", "hash-a")
	require.NoError(t, err)
	require.True(t, won)

	// the owner dies without Save or Release; the placeholder lapses on its
	// own well before the record TTL and the retry executes
	mr.FastForward(placeholderTTL + time.Second)

	_, won, err = store.Reserve(ctx, "key-5", "hash-a")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestRecordExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, won, err := store.Reserve(ctx, "key-6", "hash-a")
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, store.Save(ctx, "key-6", "hash-a", 200, []byte(`{}`)))

	mr.FastForward(2 * time.Hour)

	_, won, err = store.Reserve(ctx, "key-6", "hash-a")
	require.NoError(t, err)
	assert.True(t, won)
}
