// Package entry holds the business records of the tracker: customer visits
// with a bounded change history and a mutable delegation of responsibility.
package entry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldpulse.org/internal/geo"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending       Status = "Pending"
	StatusNotFound      Status = "Not Found"
	StatusInterested    Status = "Interested"
	StatusNotInterested Status = "Not Interested"
	StatusFollowUp      Status = "Follow Up"
	StatusConverted     Status = "Converted"
)

var statuses = map[Status]struct{}{
	StatusPending:       {},
	StatusNotFound:      {},
	StatusInterested:    {},
	StatusNotInterested: {},
	StatusFollowUp:      {},
	StatusConverted:     {},
}

// ParseStatus validates a status string. Empty input maps to Pending.
func ParseStatus(s string) (Status, error) {
	if strings.TrimSpace(s) == "" {
		return StatusPending, nil
	}
	st := Status(s)
	if _, ok := statuses[st]; !ok {
		return "", fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// Product is one line item discussed with the customer. Price is in minor
// units.
type Product struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// Entry is a tracked customer record. CreatedBy is the immutable owner;
// AssignedTo is the current delegation of responsibility. History holds the
// most recent transitions, oldest first, bounded by historyCap. Version is
// the optimistic concurrency token.
type Entry struct {
	ID               string          `json:"id"`
	CustomerName     string          `json:"customerName"`
	Phone            string          `json:"phone,omitempty"`
	Address          string          `json:"address,omitempty"`
	Status           Status          `json:"status"`
	Remarks          string          `json:"remarks,omitempty"`
	Location         *geo.Point      `json:"location,omitempty"`
	Products         []Product       `json:"products,omitempty"`
	FirstPersonMeet  string          `json:"firstPersonMeet,omitempty"`
	SecondPersonMeet string          `json:"secondPersonMeet,omitempty"`
	CreatedBy        string          `json:"createdBy"`
	AssignedTo       []string        `json:"assignedTo"`
	History          []HistoryRecord `json:"history"`
	Version          int64           `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// IsAssigned reports whether userID is in the entry's assignment set.
func (e Entry) IsAssigned(userID string) bool {
	for _, id := range e.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// HistoryRecord is one immutable snapshot of the entry at a transition.
// Change names the detected transition category.
type HistoryRecord struct {
	Change           Change     `json:"change"`
	Status           Status     `json:"status"`
	Remarks          string     `json:"remarks,omitempty"`
	Location         *geo.Point `json:"location,omitempty"`
	Products         []Product  `json:"products,omitempty"`
	AssignedTo       []string   `json:"assignedTo"`
	FirstPersonMeet  string     `json:"firstPersonMeet,omitempty"`
	SecondPersonMeet string     `json:"secondPersonMeet,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
}

var (
	ErrInvalidInput    = errors.New("entry: invalid input")
	ErrNotFound        = errors.New("entry: not found")
	ErrVersionConflict = errors.New("entry: concurrent update conflict")
	ErrContention      = errors.New("entry: update contention, retry")
)
