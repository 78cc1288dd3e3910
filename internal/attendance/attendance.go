// Package attendance keeps one daily presence record per user. Days are
// normalized to UTC midnight so a user cannot hold two records for the
// same calendar day regardless of the server's local zone.
package attendance

import (
	"errors"
	"time"

	"fieldpulse.org/internal/geo"
)

// Status classifies a daily attendance record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
	StatusLeave   Status = "Leave"
)

// Record is one user's attendance for one UTC day. The locations are where
// the user checked in and out, when the client reported them.
type Record struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Day              time.Time  `json:"day"`
	Status           Status     `json:"status"`
	CheckInAt        *time.Time `json:"checkInAt,omitempty"`
	CheckOutAt       *time.Time `json:"checkOutAt,omitempty"`
	CheckInLocation  *geo.Point `json:"checkInLocation,omitempty"`
	CheckOutLocation *geo.Point `json:"checkOutLocation,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

var (
	ErrInvalidInput      = errors.New("attendance: invalid input")
	ErrNotFound          = errors.New("attendance: record not found")
	ErrAlreadyCheckedIn  = errors.New("attendance: already checked in today")
	ErrNotCheckedIn      = errors.New("attendance: not checked in today")
	ErrAlreadyCheckedOut = errors.New("attendance: already checked out today")
	ErrOnLeave           = errors.New("attendance: marked on leave today")
)

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
