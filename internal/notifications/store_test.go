package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careview/backend/internal/cache"
)

type storeFixture struct {
	store  *Store
	memory *cache.MemoryStore
	now    *time.Time
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	memory := cache.NewMemoryStore()
	t.Cleanup(func() { _ = memory.Close() })

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store, err := NewStore(cache.New(memory, time.Hour), StoreConfig{
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	return &storeFixture{store: store, memory: memory, now: &now}
}

type recordingSink struct {
	received []*Notification
}

func (r *recordingSink) NotificationCreated(_ context.Context, n *Notification) {
	r.received = append(r.received, n)
}

func TestCreateIncrementsUnreadCount(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.store.Create(ctx, "u1", "Reminder", "msg", TypeAppointmentReminder, nil)
		require.NoError(t, err)
	}

	require.EqualValues(t, 3, f.store.UnreadCount(ctx, "u1"))
	require.Zero(t, f.store.UnreadCount(ctx, "u2"))
}

func TestCreateRequiresUserID(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.store.Create(context.Background(), "", "t", "m", TypeNewMessage, nil)
	require.Error(t, err)
}

func TestCreateNotifiesSinks(t *testing.T) {
	f := newStoreFixture(t)
	sink := &recordingSink{}
	f.store.AddSink(sink)

	created, err := f.store.Create(context.Background(), "u1", "Reminder", "msg", TypeAppointmentReminder, nil)
	require.NoError(t, err)

	require.Len(t, sink.received, 1)
	require.Equal(t, created.ID, sink.received[0].ID)
	require.False(t, sink.received[0].IsRead)
}

func TestMarkAsReadOwnershipAndCounter(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	created, err := f.store.Create(ctx, "u1", "Reminder", "msg", TypeAppointmentReminder, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, f.store.UnreadCount(ctx, "u1"))

	require.True(t, f.store.MarkAsRead(ctx, created.ID, "u1"))
	require.EqualValues(t, 0, f.store.UnreadCount(ctx, "u1"))

	// Wrong owner is rejected and leaves the counter alone.
	require.False(t, f.store.MarkAsRead(ctx, created.ID, "u2"))
	require.EqualValues(t, 0, f.store.UnreadCount(ctx, "u1"))

	// Re-reading an already-read notification never drives the counter negative.
	require.True(t, f.store.MarkAsRead(ctx, created.ID, "u1"))
	require.EqualValues(t, 0, f.store.UnreadCount(ctx, "u1"))

	require.False(t, f.store.MarkAsRead(ctx, "missing", "u1"))
}

func TestMarkAllAsRead(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	var last *Notification
	for i := 0; i < 3; i++ {
		n, err := f.store.Create(ctx, "u1", "Reminder", "msg", TypeAppointmentReminder, nil)
		require.NoError(t, err)
		last = n
	}
	require.True(t, f.store.MarkAsRead(ctx, last.ID, "u1"))

	require.Equal(t, 2, f.store.MarkAllAsRead(ctx, "u1"))
	require.EqualValues(t, 0, f.store.UnreadCount(ctx, "u1"))

	for _, n := range f.store.List(ctx, "u1", 0, 0) {
		require.True(t, n.IsRead)
	}

	// Nothing left to flip.
	require.Zero(t, f.store.MarkAllAsRead(ctx, "u1"))
}

func TestDeleteRemovesFromListAndCounter(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	first, err := f.store.Create(ctx, "u1", "A", "m", TypeNewMessage, nil)
	require.NoError(t, err)
	second, err := f.store.Create(ctx, "u1", "B", "m", TypeNewMessage, nil)
	require.NoError(t, err)

	require.False(t, f.store.Delete(ctx, first.ID, "u2"), "wrong owner cannot delete")

	require.True(t, f.store.Delete(ctx, first.ID, "u1"))
	require.EqualValues(t, 1, f.store.UnreadCount(ctx, "u1"))

	listed := f.store.List(ctx, "u1", 0, 0)
	require.Len(t, listed, 1)
	require.Equal(t, second.ID, listed[0].ID)

	// Deleting an already-read notification leaves the counter untouched.
	require.True(t, f.store.MarkAsRead(ctx, second.ID, "u1"))
	require.True(t, f.store.Delete(ctx, second.ID, "u1"))
	require.EqualValues(t, 0, f.store.UnreadCount(ctx, "u1"))

	require.False(t, f.store.Delete(ctx, second.ID, "u1"))
}

func TestListNewestFirstWithPagination(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		n, err := f.store.Create(ctx, "u1", "Reminder", "msg", TypeAppointmentReminder, nil)
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	page := f.store.List(ctx, "u1", 2, 0)
	require.Len(t, page, 2)
	require.Equal(t, ids[4], page[0].ID, "newest first")
	require.Equal(t, ids[3], page[1].ID)

	page = f.store.List(ctx, "u1", 2, 4)
	require.Len(t, page, 1)
	require.Equal(t, ids[0], page[0].ID)

	require.Empty(t, f.store.List(ctx, "u1", 2, 10))
	require.Empty(t, f.store.List(ctx, "u2", 0, 0))
}

func TestListSkipsExpiredRecords(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	kept, err := f.store.Create(ctx, "u1", "A", "m", TypeNewMessage, nil)
	require.NoError(t, err)
	dropped, err := f.store.Create(ctx, "u1", "B", "m", TypeNewMessage, nil)
	require.NoError(t, err)

	// Simulate TTL expiry of one record while its ID stays in the list.
	_, err = f.memory.Delete(ctx, "notification:"+dropped.ID)
	require.NoError(t, err)

	listed := f.store.List(ctx, "u1", 0, 0)
	require.Len(t, listed, 1)
	require.Equal(t, kept.ID, listed[0].ID)
}
