package models

import (
	"time"
)

// QueueMetrics is the dashboard view of one event's waiting room.
type QueueMetrics struct {
	EventID      string    `json:"event_id"`
	TotalInQueue int64     `json:"total_in_queue"`
	AllowedCount int64     `json:"allowed_count"`
	LastUpdated  time.Time `json:"last_updated"`
}
