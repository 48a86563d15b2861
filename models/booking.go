package models

import (
	"fmt"
	"time"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

type Booking struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	EventID       string     `json:"event_id"`
	TicketBatchID string     `json:"ticket_batch_id"`
	TicketCount   int        `json:"ticket_count"`
	PaymentStatus string     `json:"payment_status"` // pending, confirmed, cancelled
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	ReferenceCode string     `json:"reference_code"`
}

// QRString builds the payload rendered into the booking QR code. It is a
// pure derivation from the stored booking, not a side effect of creating it.
func (b *Booking) QRString(eventName, userEmail string) string {
	return fmt.Sprintf("Booking ID: %s, Reference Code: %s, Event: %s, User: %s",
		b.ID, b.ReferenceCode, eventName, userEmail)
}
