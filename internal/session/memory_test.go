package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, *time.Time) {
	t.Helper()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewStore(StoreTypeMemory,
		WithTTL(NamespaceChat, 24*time.Hour),
		WithTTL(NamespaceAdmin, 2*time.Hour),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, &now
}

func TestCreateSetsTTLFromNamespace(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	chat, err := store.Create(ctx, NamespaceChat, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), chat.ExpiresAt)
	assert.Equal(t, *now, chat.CreatedAt)
	assert.Equal(t, "1.2.3.4", chat.OwnerRef)

	admin, err := store.Create(ctx, NamespaceAdmin, "admin")
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Hour), admin.ExpiresAt)
}

func TestValidateReturnsLiveSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, NamespaceChat, "")
	require.NoError(t, err)

	got, err := store.Validate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestValidateUnknownID(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Validate(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateEvictsExpired(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, NamespaceChat, "")
	require.NoError(t, err)

	*now = now.Add(24*time.Hour + time.Second)

	_, err = store.Validate(ctx, created.ID)
	assert.ErrorIs(t, err, ErrExpired)

	// Once evicted the id is gone, not just expired.
	_, err = store.Validate(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchDoesNotExtendExpiry(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, NamespaceChat, "")
	require.NoError(t, err)

	*now = now.Add(12 * time.Hour)
	require.NoError(t, store.Touch(ctx, created.ID))

	got, err := store.Validate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, *now, got.LastActivityAt)
	assert.Equal(t, 1, got.TurnCount)
}

func TestTouchMissingSessionIsNoop(t *testing.T) {
	store, _ := newTestStore(t)

	assert.NoError(t, store.Touch(context.Background(), "no-such-session"))
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	stale, err := store.Create(ctx, NamespaceAdmin, "admin")
	require.NoError(t, err)

	*now = now.Add(3 * time.Hour)
	live, err := store.Create(ctx, NamespaceChat, "")
	require.NoError(t, err)

	evicted, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = store.Validate(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Validate(ctx, live.ID)
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, NamespaceChat, "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Validate(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, NamespaceChat, "")
	require.NoError(t, err)

	got, err := store.Validate(ctx, created.ID)
	require.NoError(t, err)
	got.TurnCount = 99

	again, err := store.Validate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.TurnCount)
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := NewStore(StoreType("bogus"))
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestFactoryRequiresDBForSQLite(t *testing.T) {
	_, err := NewStore(StoreTypeSQLite)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFactoryRequiresClientForRedis(t *testing.T) {
	_, err := NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
