package models

import (
	"time"
)

type Event struct {
	ID            string    `json:"id"`
	HostID        string    `json:"host_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	MaxAttendance int       `json:"max_attendance"`
	// QueueActive marks the event whose bookings are gated behind the
	// waiting room. At most one event may have it set at a time.
	QueueActive bool `json:"queue_active"`
}
