package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/page"
)

func TestNotifyPersistsAndDelivers(t *testing.T) {
	store := NewInMemory()
	hub := NewHub()
	d := NewDispatcher(store, hub)

	recipient := ids.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := hub.Subscribe(ctx, recipient)
	require.NoError(t, err)

	n, err := d.Notify(ctx, recipient, "entry assigned to you", "")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)

	select {
	case evt := <-ch:
		assert.Equal(t, EventNewNotification, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected live delivery")
	}

	notes, info, err := d.List(ctx, recipient, false, page.Request{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 1, info.TotalRecords)
	assert.Equal(t, "entry assigned to you", notes[0].Message)
}

func TestNotifyDropsMalformedRecipient(t *testing.T) {
	store := NewInMemory()
	d := NewDispatcher(store, NewHub())

	n, err := d.Notify(context.Background(), "not-an-id", "hello", "")
	require.NoError(t, err, "malformed ids are dropped, never raised")
	assert.Empty(t, n.ID)

	notes, _, err := d.List(context.Background(), "not-an-id", false, page.Request{})
	require.NoError(t, err)
	assert.Empty(t, notes, "nothing may be persisted for a dropped notification")
}

type failingStore struct{ Store }

func (failingStore) Insert(ctx context.Context, n Notification) error {
	return errors.New("disk full")
}

func TestFanoutCollectsFailures(t *testing.T) {
	d := NewDispatcher(failingStore{NewInMemory()}, NewHub())

	a, b := ids.New(), ids.New()
	err := d.Fanout(context.Background(), []Target{
		{UserID: a, Message: "m"},
		{UserID: "malformed", Message: "m"},
		{UserID: b, Message: "m"},
	})
	require.Error(t, err)
	// Both valid targets failed on persist; the malformed one was dropped
	// silently and contributes no error.
	assert.Contains(t, err.Error(), a)
	assert.Contains(t, err.Error(), b)
	assert.NotContains(t, err.Error(), "malformed")
}

func TestMarkReadScopedToOwner(t *testing.T) {
	store := NewInMemory()
	d := NewDispatcher(store, NewHub())
	ctx := context.Background()

	owner, other := ids.New(), ids.New()
	n1, err := d.Notify(ctx, owner, "one", "")
	require.NoError(t, err)
	n2, err := d.Notify(ctx, other, "two", "")
	require.NoError(t, err)

	// The owner tries to mark both: only its own flips.
	updated, err := d.MarkRead(ctx, owner, []string{n1.ID, n2.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	notes, _, err := d.List(ctx, other, true, page.Request{})
	require.NoError(t, err)
	assert.Len(t, notes, 1, "other user's notification must stay unread")
}

func TestClearAnnounces(t *testing.T) {
	store := NewInMemory()
	hub := NewHub()
	d := NewDispatcher(store, hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := ids.New()
	_, err := d.Notify(ctx, owner, "one", "")
	require.NoError(t, err)

	ch, err := hub.Subscribe(ctx, owner)
	require.NoError(t, err)

	removed, err := d.Clear(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	select {
	case evt := <-ch:
		assert.Equal(t, EventNotificationsCleared, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected cleared event")
	}
}
