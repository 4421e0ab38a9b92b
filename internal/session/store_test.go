package session

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
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestCreateAndLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, StageGreeting, sess.Stage)

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, StageGreeting, loaded.Stage)
}

func TestLoadUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRoundTripsFieldsAndHistory(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	sess.Stage = StageDateSelection
	sess.Set(FieldPatientName, "Rita Mehta")
	sess.Set(FieldDoctorID, "d-1")
	sess.Append("user", "next monday please", time.Now())
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StageDateSelection, loaded.Stage)
	assert.Equal(t, "Rita Mehta", loaded.Get(FieldPatientName))
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "next monday please", loaded.History[0].Content)
}

func TestExpiredSessionBehavesAsNotFound(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireRemovesSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Expire(ctx, sess.ID))

	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepPrunesExpiredIndexEntries(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	stale, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	fresh, err := store.Create(ctx)
	require.NoError(t, err)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Load(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = store.Load(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetBookingClearsFields(t *testing.T) {
	sess := &Session{Fields: map[string]string{
		FieldPatientName: "A",
		FieldDate:        "2026-09-07",
	}}
	sess.Append("user", "hello", time.Now())

	sess.ResetBooking()

	assert.Empty(t, sess.Fields)
	assert.Len(t, sess.History, 1)
}
