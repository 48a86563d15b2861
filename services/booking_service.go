package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"
	"event-ticketing/monitoring"
	"event-ticketing/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

// Narrow views of the collaborating services, so the booking flow can be
// exercised against doubles.
type eventGetter interface {
	Get(eventID string) (*models.Event, error)
}

type waitingRoom interface {
	Enqueue(ctx context.Context, eventID, userID string) (bool, int64, error)
	Position(ctx context.Context, eventID, userID string) (int64, error)
	IsAllowed(ctx context.Context, eventID, userID string) (bool, error)
	Revoke(ctx context.Context, eventID, userID string) error
}

type bookingTokens interface {
	Live(userID, eventID string) bool
	Token(userID, eventID string) (string, error)
	Validate(tokenString, userID, eventID string) error
}

// bookingStore is the transactional storage behind Book: batch lookup plus
// the consume-reserve-insert pipeline that commits or rolls back as one.
type bookingStore interface {
	TicketBatch(batchID string) (*models.TicketBatch, error)
	CreateBooking(userID, eventID, batchID string, count int, referenceCode string, consumeToken bool) (*models.Booking, error)
}

// BookingService is the request-facing booking path: it enforces the
// waiting-room gate when the event's queue is active, then reserves
// inventory and records the booking in one transaction.
type BookingService struct {
	app      core.App
	events   eventGetter
	store    bookingStore
	queue    waitingRoom
	tokens   bookingTokens
	notifier Notifier
}

func NewBookingService(app core.App, events *EventService, inventory *InventoryService, queue *QueueService, tokens *TokenService, notifier Notifier) *BookingService {
	return &BookingService{
		app:      app,
		events:   events,
		store:    &recordBookingStore{app: app, inventory: inventory, tokens: tokens},
		queue:    queue,
		tokens:   tokens,
		notifier: notifier,
	}
}

// StartBookingResult tells the client whether they may book right away or
// have been placed in the waiting room.
type StartBookingResult struct {
	Allowed  bool  `json:"allowed"`
	Queued   bool  `json:"queued"`
	Added    bool  `json:"added"`
	Position int64 `json:"position,omitempty"`
}

// StartBooking is the gate check. If the event's queue is inactive, or the
// user already holds a live booking token, booking may proceed. Otherwise
// the user joins the waiting room (idempotently).
func (s *BookingService) StartBooking(ctx context.Context, userID, eventID string) (*StartBookingResult, error) {
	event, err := s.events.Get(eventID)
	if err != nil {
		return nil, err
	}

	if !event.QueueActive {
		return &StartBookingResult{Allowed: true}, nil
	}

	if s.tokens.Live(userID, eventID) {
		return &StartBookingResult{Allowed: true}, nil
	}

	added, position, err := s.queue.Enqueue(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	monitoring.TrackQueueOperation("enqueue", eventID, "success")

	return &StartBookingResult{
		Queued:   true,
		Added:    added,
		Position: position,
	}, nil
}

// QueueStatusResult is the waiting-room poll response: either the booking
// token for an admitted user or their current position.
type QueueStatusResult struct {
	Allowed      bool   `json:"allowed"`
	BookingToken string `json:"booking_token,omitempty"`
	Position     int64  `json:"position,omitempty"`
}

// QueueStatus reports where the user stands for a queue-gated event.
func (s *BookingService) QueueStatus(ctx context.Context, userID, eventID string) (*QueueStatusResult, error) {
	if _, err := s.events.Get(eventID); err != nil {
		return nil, err
	}

	allowed, err := s.queue.IsAllowed(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	// The allowed set only holds the last cycle's batch, so the stored
	// token, not set membership, decides whether the user may book: a user
	// promoted several cycles ago still gets their token back here.
	token, tokenErr := s.tokens.Token(userID, eventID)
	if tokenErr == nil {
		return &QueueStatusResult{Allowed: true, BookingToken: token}, nil
	}
	if allowed {
		// Promoted but the token is gone or expired: the user has to
		// rejoin explicitly, expiry does not re-queue them.
		return nil, tokenErr
	}

	position, err := s.queue.Position(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	return &QueueStatusResult{Position: position}, nil
}

// Book reserves count tickets from the batch and records a confirmed
// booking. Token consumption, the reservation and the booking row share
// one transaction: either all commit or none do.
func (s *BookingService) Book(ctx context.Context, userID, eventID, batchID string, count int, token string) (*models.Booking, error) {
	event, err := s.events.Get(eventID)
	if err != nil {
		return nil, err
	}

	if event.QueueActive {
		if token == "" {
			return nil, status.ErrTokenRequired
		}
		if err := s.tokens.Validate(token, userID, eventID); err != nil {
			return nil, err
		}
	}

	batch, err := s.store.TicketBatch(batchID)
	if err != nil {
		return nil, err
	}
	if batch.EventID != eventID {
		return nil, status.ErrBatchMismatch
	}
	if count <= 0 {
		return nil, status.ErrInvalidTicketCount
	}

	referenceCode, err := utils.GenerateCode(16)
	if err != nil {
		return nil, fmt.Errorf("generate reference code: %w", err)
	}

	booking, err := s.store.CreateBooking(userID, eventID, batchID, count, referenceCode, event.QueueActive)
	if err != nil {
		monitoring.TrackReservation(eventID, "rejected")
		switch {
		case errors.Is(err, status.ErrInsufficientInventory),
			errors.Is(err, status.ErrTicketBatchNotFound),
			errors.Is(err, status.ErrInvalidTicketCount),
			errors.Is(err, status.ErrTokenInvalid),
			errors.Is(err, status.ErrTokenExpired):
			return nil, err
		default:
			// Storage-level failure: the transaction rolled back, nothing
			// was mutated. Surface a generic error, not the internals.
			slog.Error("booking transaction failed", "userID", userID, "batchID", batchID, "error", err)
			return nil, status.ErrBookingFailed
		}
	}

	monitoring.TrackReservation(eventID, "confirmed")

	if event.QueueActive {
		// The token row was consumed inside the transaction; dropping the
		// allowed-set entry afterwards is best effort.
		if err := s.queue.Revoke(ctx, eventID, userID); err != nil {
			slog.Warn("allowed set revoke failed", "userID", userID, "eventID", eventID, "error", err)
		}
	}

	amount := batch.Price.Mul(decimal.NewFromInt(int64(count)))
	s.notifier.Publish(ctx, userChannel(userID), map[string]any{
		"type":           "booking_confirmed",
		"event_id":       eventID,
		"booking_id":     booking.ID,
		"ticket_count":   count,
		"amount":         amount.String(),
		"reference_code": booking.ReferenceCode,
	})

	return booking, nil
}

// ListBookings returns the caller's bookings, newest first. Staff callers
// see everyone's.
func (s *BookingService) ListBookings(userID string, staff bool) ([]*models.Booking, error) {
	filter := "user = {:user}"
	params := dbx.Params{"user": userID}
	if staff {
		filter = "id != ''"
		params = dbx.Params{}
	}

	records, err := s.app.FindRecordsByFilter("bookings", filter, "-created", 0, 0, params)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	bookings := make([]*models.Booking, 0, len(records))
	for _, record := range records {
		bookings = append(bookings, bookingFromRecord(record))
	}
	return bookings, nil
}

// GetBooking loads one booking, enforcing ownership for non-staff callers.
func (s *BookingService) GetBooking(bookingID, requesterID string, staff bool) (*models.Booking, error) {
	record, err := s.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return nil, status.ErrBookingNotFound
	}
	if !staff && record.GetString("user") != requesterID {
		return nil, status.ErrBookingNotFound
	}
	return bookingFromRecord(record), nil
}

// QRPayload derives the string rendered into the booking's QR code.
func (s *BookingService) QRPayload(bookingID, requesterID string, staff bool) (string, error) {
	booking, err := s.GetBooking(bookingID, requesterID, staff)
	if err != nil {
		return "", err
	}

	eventName := ""
	if event, err := s.app.FindRecordById("events", booking.EventID); err == nil {
		eventName = event.GetString("name")
	}

	userEmail := ""
	if user, err := s.app.FindRecordById("users", booking.UserID); err == nil {
		userEmail = user.GetString("email")
	}

	return booking.QRString(eventName, userEmail), nil
}

// recordBookingStore implements bookingStore on PocketBase records.
type recordBookingStore struct {
	app       core.App
	inventory *InventoryService
	tokens    *TokenService
}

func (r *recordBookingStore) TicketBatch(batchID string) (*models.TicketBatch, error) {
	record, err := r.app.FindRecordById("ticket_batches", batchID)
	if err != nil {
		return nil, status.ErrTicketBatchNotFound
	}
	return ticketBatchFromRecord(record), nil
}

func (r *recordBookingStore) CreateBooking(userID, eventID, batchID string, count int, referenceCode string, consumeToken bool) (*models.Booking, error) {
	var booking *models.Booking
	err := r.app.RunInTransaction(func(txApp core.App) error {
		if consumeToken {
			if err := r.tokens.ConsumeTx(txApp, userID, eventID); err != nil {
				return err
			}
		}

		if err := r.inventory.Reserve(txApp, batchID, count); err != nil {
			return err
		}

		collection, err := txApp.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}

		now := time.Now()
		record := core.NewRecord(collection)
		record.Set("user", userID)
		record.Set("event", eventID)
		record.Set("ticket_batch", batchID)
		record.Set("ticket_count", count)
		record.Set("payment_status", models.BookingStatusConfirmed)
		record.Set("confirmed_at", now.UTC().Format(types.DefaultDateLayout))
		record.Set("reference_code", referenceCode)
		if err := txApp.Save(record); err != nil {
			return err
		}

		booking = bookingFromRecord(record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func bookingFromRecord(record *core.Record) *models.Booking {
	booking := &models.Booking{
		ID:            record.Id,
		UserID:        record.GetString("user"),
		EventID:       record.GetString("event"),
		TicketBatchID: record.GetString("ticket_batch"),
		TicketCount:   record.GetInt("ticket_count"),
		PaymentStatus: record.GetString("payment_status"),
		ReferenceCode: record.GetString("reference_code"),
	}

	if confirmed := record.GetDateTime("confirmed_at"); !confirmed.IsZero() {
		t := confirmed.Time()
		booking.ConfirmedAt = &t
	}
	if cancelled := record.GetDateTime("cancelled_at"); !cancelled.IsZero() {
		t := cancelled.Time()
		booking.CancelledAt = &t
	}

	return booking
}
