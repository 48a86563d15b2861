package models

import (
	"time"
)

// BookingToken is the time-boxed credential a promoted user presents to
// book while the event's queue is active. Exactly one row exists per
// (user, event) pair; the row is deleted when the token is consumed by a
// successful booking or swept after expiry.
type BookingToken struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	EventID  string    `json:"event_id"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Valid reports whether the token is still inside its validity window.
func (t *BookingToken) Valid(ttl time.Duration) bool {
	return time.Since(t.IssuedAt) < ttl
}
