package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"event-ticketing/internal/status"
	"event-ticketing/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// queueStateStore is the slice of the Queue Store the event service drives
// when the queue_active flag changes.
type queueStateStore interface {
	Clear(ctx context.Context, eventID string) error
	SyncActiveEvent(ctx context.Context, eventID string) error
}

// EventService owns the queue_active flag and host-side ticket batch
// management. The flag is the single switch deciding whether bookings for
// an event are gated behind the waiting room.
type EventService struct {
	app   core.App
	queue queueStateStore
}

func NewEventService(app core.App, queue queueStateStore) *EventService {
	return &EventService{app: app, queue: queue}
}

// ActiveQueueEventID returns the id of the event whose queue is active, or
// "" when no queue is active anywhere.
func (s *EventService) ActiveQueueEventID() (string, error) {
	record, err := s.app.FindFirstRecordByFilter("events", "queue_active = true")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find active queue event: %w", err)
	}
	return record.Id, nil
}

// SetQueueActive toggles the waiting room for an event. Activating one
// event deactivates every other in the same transaction, so at most one
// queue is ever active system wide. Every event whose flag this call turns
// off also has its waiting room cleared: a queue nobody promotes from
// would strand its users in Redis forever.
func (s *EventService) SetQueueActive(ctx context.Context, eventID string, active bool) error {
	var deactivated []string
	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById("events", eventID)
		if err != nil {
			return status.ErrEventNotFound
		}

		if active {
			others, err := txApp.FindRecordsByFilter(
				"events", "queue_active = true && id != {:id}", "", 0, 0,
				dbx.Params{"id": eventID},
			)
			if err != nil {
				return fmt.Errorf("find active queues: %w", err)
			}
			for _, other := range others {
				other.Set("queue_active", false)
				if err := txApp.Save(other); err != nil {
					return fmt.Errorf("deactivate queue for event %s: %w", other.Id, err)
				}
				deactivated = append(deactivated, other.Id)
			}
		} else if record.GetBool("queue_active") {
			deactivated = append(deactivated, eventID)
		}

		record.Set("queue_active", active)
		return txApp.Save(record)
	})
	if err != nil {
		return err
	}

	s.syncQueueState(ctx, eventID, active, deactivated)
	return nil
}

// syncQueueState drops the waiting rooms of events whose queue was just
// switched off and mirrors the new active event into Redis. Redis failures
// are logged, not returned: the database flag is authoritative and the
// admission loop reads it from there.
func (s *EventService) syncQueueState(ctx context.Context, eventID string, active bool, deactivated []string) {
	for _, id := range deactivated {
		if err := s.queue.Clear(ctx, id); err != nil {
			slog.Error("failed to clear queue after deactivation", "eventID", id, "error", err)
		}
	}

	if active {
		if err := s.queue.SyncActiveEvent(ctx, eventID); err != nil {
			slog.Error("failed to sync active queue to Redis", "eventID", eventID, "error", err)
		}
	} else if len(deactivated) > 0 {
		if err := s.queue.SyncActiveEvent(ctx, ""); err != nil {
			slog.Error("failed to clear active queue in Redis", "error", err)
		}
	}
}

// Get loads an event.
func (s *EventService) Get(eventID string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		return nil, status.ErrEventNotFound
	}
	return eventFromRecord(record), nil
}

// CreateTicketBatch adds a priced ticket allotment to a hosted event. The
// total across all of the event's batches may not exceed max_attendance.
func (s *EventService) CreateTicketBatch(hostID, eventID, ticketType string, price decimal.Decimal, numberOfTickets int) (*models.TicketBatch, error) {
	event, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		return nil, status.ErrEventNotFound
	}
	if event.GetString("host") != hostID {
		return nil, fmt.Errorf("ticket batch: only the event host may add batches")
	}
	if numberOfTickets <= 0 {
		return nil, status.ErrInvalidTicketCount
	}

	var batch *models.TicketBatch
	err = s.app.RunInTransaction(func(txApp core.App) error {
		var existing struct {
			Total int `db:"total"`
		}
		if err := txApp.DB().NewQuery(
			"SELECT COALESCE(SUM(number_of_tickets), 0) AS total FROM ticket_batches WHERE event = {:event}",
		).Bind(dbx.Params{"event": eventID}).One(&existing); err != nil {
			return err
		}

		if existing.Total+numberOfTickets > event.GetInt("max_attendance") {
			return status.ErrCapacityExceeded
		}

		collection, err := txApp.FindCollectionByNameOrId("ticket_batches")
		if err != nil {
			return err
		}

		record := core.NewRecord(collection)
		record.Set("event", eventID)
		record.Set("ticket_type", ticketType)
		record.Set("price", price.InexactFloat64())
		record.Set("number_of_tickets", numberOfTickets)
		record.Set("tickets_sold", 0)
		if err := txApp.Save(record); err != nil {
			return err
		}

		batch = ticketBatchFromRecord(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

func eventFromRecord(record *core.Record) *models.Event {
	return &models.Event{
		ID:            record.Id,
		HostID:        record.GetString("host"),
		Name:          record.GetString("name"),
		Description:   record.GetString("description"),
		Location:      record.GetString("location"),
		StartDate:     record.GetDateTime("start_date").Time(),
		EndDate:       record.GetDateTime("end_date").Time(),
		MaxAttendance: record.GetInt("max_attendance"),
		QueueActive:   record.GetBool("queue_active"),
	}
}

func ticketBatchFromRecord(record *core.Record) *models.TicketBatch {
	return &models.TicketBatch{
		ID:              record.Id,
		EventID:         record.GetString("event"),
		TicketType:      record.GetString("ticket_type"),
		Price:           decimal.NewFromFloat(record.GetFloat("price")),
		NumberOfTickets: record.GetInt("number_of_tickets"),
		TicketsSold:     record.GetInt("tickets_sold"),
	}
}
