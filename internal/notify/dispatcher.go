package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/obs"
	"fieldpulse.org/internal/page"
)

// Dispatcher durably records notifications and delivers them to live
// subscribers. It is constructed once at startup, injected into every
// mutating operation, and closed at shutdown.
type Dispatcher struct {
	store  Store
	broker Broker
	now    func() time.Time
}

// NewDispatcher wires the dispatcher to its store and broker.
func NewDispatcher(store Store, broker Broker) *Dispatcher {
	return &Dispatcher{store: store, broker: broker, now: time.Now}
}

// Notify persists a notification and publishes it on the recipient's
// channel. Malformed recipient ids are logged and dropped without error:
// notification failure must never fail the triggering business operation.
// A persistence failure is returned so callers can collect it, but the
// publish step is best effort because the record is already durable.
func (d *Dispatcher) Notify(ctx context.Context, userID, message, entryID string) (Notification, error) {
	if !ids.IsValid(userID) {
		obs.LogEvent(map[string]any{
			"level":   "warn",
			"msg":     "notification dropped: malformed recipient id",
			"user_id": userID,
		})
		obs.IncNotificationDropped()
		return Notification{}, nil
	}
	if message == "" {
		return Notification{}, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	n := Notification{
		ID:        ids.New(),
		UserID:    userID,
		Message:   message,
		EntryID:   entryID,
		CreatedAt: d.now().UTC(),
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return Notification{}, fmt.Errorf("persist notification: %w", err)
	}

	delivered, err := d.broker.Publish(ctx, userID, Event{Kind: EventNewNotification, Payload: n})
	if err != nil {
		obs.LogEvent(map[string]any{
			"level":   "warn",
			"msg":     "notification publish failed",
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	obs.IncNotificationPublished(delivered)
	return n, nil
}

// Target is one recipient of a fan-out.
type Target struct {
	UserID  string
	Message string
	EntryID string
}

// Fanout dispatches notifications to all targets concurrently, waits for
// every one, and returns the collected failures joined together. Callers
// log the result; they never fail or roll back on it.
func (d *Dispatcher) Fanout(ctx context.Context, targets []Target) error {
	if len(targets) == 0 {
		return nil
	}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt Target) {
			defer wg.Done()
			if _, err := d.Notify(ctx, tgt.UserID, tgt.Message, tgt.EntryID); err != nil {
				errs[i] = fmt.Errorf("notify %s: %w", tgt.UserID, err)
			}
		}(i, tgt)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// List returns the caller's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, userID string, unreadOnly bool, pr page.Request) ([]Notification, page.Info, error) {
	pr = pr.Normalize()
	notes, total, err := d.store.List(ctx, userID, unreadOnly, pr)
	if err != nil {
		return nil, page.Info{}, err
	}
	return notes, page.InfoFor(pr, total), nil
}

// MarkRead flips read flags on the caller's own notifications. An empty id
// list marks everything unread.
func (d *Dispatcher) MarkRead(ctx context.Context, userID string, noteIDs []string) (int, error) {
	return d.store.MarkRead(ctx, userID, noteIDs)
}

// Clear deletes all of the caller's notifications and announces it on the
// caller's channel.
func (d *Dispatcher) Clear(ctx context.Context, userID string) (int, error) {
	removed, err := d.store.Clear(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := d.broker.Publish(ctx, userID, Event{Kind: EventNotificationsCleared}); err != nil {
		obs.LogEvent(map[string]any{
			"level":   "warn",
			"msg":     "cleared event publish failed",
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return removed, nil
}

// AnnouncePasswordChange publishes a passwordChange event on the user's
// channel. The event originates outside the notification store and shares
// the channel convention only.
func (d *Dispatcher) AnnouncePasswordChange(ctx context.Context, userID string) {
	if _, err := d.broker.Publish(ctx, userID, Event{
		Kind:    EventPasswordChange,
		Payload: map[string]string{"userId": userID},
	}); err != nil {
		obs.LogEvent(map[string]any{
			"level":   "warn",
			"msg":     "password change publish failed",
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// Subscribe exposes the caller's live channel.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Event, error) {
	return d.broker.Subscribe(ctx, userID)
}

// Close drains the underlying broker.
func (d *Dispatcher) Close() error {
	return d.broker.Close()
}
