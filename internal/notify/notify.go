// Package notify durably records notifications and delivers them live over
// per-user channels.
package notify

import (
	"context"
	"errors"
	"time"

	"fieldpulse.org/internal/page"
)

// Event kinds carried on a user's channel.
const (
	EventNewNotification      = "newNotification"
	EventNotificationsCleared = "notificationsCleared"
	EventPasswordChange       = "passwordChange"
)

// Event is one message on a per-user channel.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// Notification is a durably persisted message for one recipient. EntryID is
// a weak reference: the referenced entry may be deleted later and the
// notification stays valid.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	EntryID   string    `json:"entryId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrNotFound     = errors.New("notify: not found")
	ErrInvalidInput = errors.New("notify: invalid input")
)

// Store is the persistence boundary for notifications.
type Store interface {
	Insert(ctx context.Context, n Notification) error
	// List returns the recipient's notifications, newest first, plus the
	// total count matching the filter.
	List(ctx context.Context, userID string, unreadOnly bool, pr page.Request) ([]Notification, int, error)
	// MarkRead flips read flags for the recipient's own notifications only
	// and reports how many were updated. An empty id list marks everything
	// unread.
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	// Clear deletes all of the recipient's notifications.
	Clear(ctx context.Context, userID string) (int, error)
}

// Broker delivers events to live subscribers. Delivery is best effort and
// at-most-once per publish: a missed publish is recovered by polling the
// store.
type Broker interface {
	// Publish sends evt on the user's channel, reporting whether at least
	// one live subscriber received it.
	Publish(ctx context.Context, userID string, evt Event) (bool, error)
	// Subscribe returns a channel of events for the user. The channel is
	// closed when ctx ends.
	Subscribe(ctx context.Context, userID string) (<-chan Event, error)
	Close() error
}
