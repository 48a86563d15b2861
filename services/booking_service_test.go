package services

import (
	"context"
	"sync"
	"testing"

	"event-ticketing/internal/status"
	"event-ticketing/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	events map[string]*models.Event
}

func (f *fakeEvents) Get(eventID string) (*models.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, status.ErrEventNotFound
	}
	return event, nil
}

type fakeWaitingRoom struct {
	allowed      bool
	allowedErr   error
	position     int64
	positionErr  error
	enqueueAdded bool
	enqueuePos   int64
	enqueueErr   error
	revoked      []string
}

func (f *fakeWaitingRoom) Enqueue(ctx context.Context, eventID, userID string) (bool, int64, error) {
	return f.enqueueAdded, f.enqueuePos, f.enqueueErr
}

func (f *fakeWaitingRoom) Position(ctx context.Context, eventID, userID string) (int64, error) {
	return f.position, f.positionErr
}

func (f *fakeWaitingRoom) IsAllowed(ctx context.Context, eventID, userID string) (bool, error) {
	return f.allowed, f.allowedErr
}

func (f *fakeWaitingRoom) Revoke(ctx context.Context, eventID, userID string) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeBookingTokens struct {
	live        bool
	token       string
	tokenErr    error
	validateErr error
}

func (f *fakeBookingTokens) Live(userID, eventID string) bool { return f.live }

func (f *fakeBookingTokens) Token(userID, eventID string) (string, error) {
	return f.token, f.tokenErr
}

func (f *fakeBookingTokens) Validate(tokenString, userID, eventID string) error {
	return f.validateErr
}

// memBookingStore mirrors the transactional store: all checks run before any
// mutation, so a failed call leaves tokens, inventory and bookings untouched.
type memBookingStore struct {
	mu       sync.Mutex
	batches  map[string]*models.TicketBatch
	tokens   map[string]bool
	bookings []*models.Booking
}

func newMemBookingStore(batches ...*models.TicketBatch) *memBookingStore {
	store := &memBookingStore{
		batches: map[string]*models.TicketBatch{},
		tokens:  map[string]bool{},
	}
	for _, batch := range batches {
		store.batches[batch.ID] = batch
	}
	return store
}

func (m *memBookingStore) grantToken(userID, eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID+"/"+eventID] = true
}

func (m *memBookingStore) hasToken(userID, eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID+"/"+eventID]
}

func (m *memBookingStore) TicketBatch(batchID string) (*models.TicketBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.batches[batchID]
	if !ok {
		return nil, status.ErrTicketBatchNotFound
	}
	copied := *batch
	return &copied, nil
}

func (m *memBookingStore) CreateBooking(userID, eventID, batchID string, count int, referenceCode string, consumeToken bool) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokenKey := userID + "/" + eventID
	if consumeToken && !m.tokens[tokenKey] {
		return nil, status.ErrTokenInvalid
	}

	batch, ok := m.batches[batchID]
	if !ok {
		return nil, status.ErrTicketBatchNotFound
	}
	if count <= 0 {
		return nil, status.ErrInvalidTicketCount
	}
	if batch.TicketsSold+count > batch.NumberOfTickets {
		return nil, status.ErrInsufficientInventory
	}

	if consumeToken {
		delete(m.tokens, tokenKey)
	}
	batch.TicketsSold += count

	booking := &models.Booking{
		ID:            "bkg" + referenceCode[:4],
		UserID:        userID,
		EventID:       eventID,
		TicketBatchID: batchID,
		TicketCount:   count,
		PaymentStatus: models.BookingStatusConfirmed,
		ReferenceCode: referenceCode,
	}
	m.bookings = append(m.bookings, booking)
	return booking, nil
}

func (m *memBookingStore) sold(batchID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[batchID].TicketsSold
}

func (m *memBookingStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func newTestBookingService(events *fakeEvents, store *memBookingStore, queue *fakeWaitingRoom, tokens *fakeBookingTokens, notifier Notifier) *BookingService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &BookingService{
		events:   events,
		store:    store,
		queue:    queue,
		tokens:   tokens,
		notifier: notifier,
	}
}

func openEvent(id string) *fakeEvents {
	return &fakeEvents{events: map[string]*models.Event{
		id: {ID: id, QueueActive: false},
	}}
}

func gatedEvent(id string) *fakeEvents {
	return &fakeEvents{events: map[string]*models.Event{
		id: {ID: id, QueueActive: true},
	}}
}

func TestBookingService_Book_NeverOversells(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID:              "batch1",
		EventID:         "evt1",
		Price:           decimal.NewFromInt(50),
		NumberOfTickets: 100,
		TicketsSold:     95,
	})
	service := newTestBookingService(openEvent("evt1"), store, &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	ctx := context.Background()
	var wg sync.WaitGroup
	var errSmall, errLarge error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errSmall = service.Book(ctx, "user1", "evt1", "batch1", 5, "")
	}()
	go func() {
		defer wg.Done()
		_, errLarge = service.Book(ctx, "user2", "evt1", "batch1", 10, "")
	}()
	wg.Wait()

	assert.NoError(t, errSmall)
	assert.ErrorIs(t, errLarge, status.ErrInsufficientInventory)
	assert.Equal(t, 100, store.sold("batch1"))
	assert.Equal(t, 1, store.bookingCount())
}

func TestBookingService_Book_FailedReservationLeavesNothing(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID:              "batch1",
		EventID:         "evt1",
		Price:           decimal.NewFromInt(50),
		NumberOfTickets: 10,
		TicketsSold:     8,
	})
	store.grantToken("user1", "evt1")
	service := newTestBookingService(gatedEvent("evt1"), store, &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	_, err := service.Book(context.Background(), "user1", "evt1", "batch1", 5, "tok")

	assert.ErrorIs(t, err, status.ErrInsufficientInventory)
	assert.Equal(t, 8, store.sold("batch1"))
	assert.Zero(t, store.bookingCount())
	assert.True(t, store.hasToken("user1", "evt1"), "token must survive a rolled-back booking")
}

func TestBookingService_Book_TokenRequiredWhenQueueActive(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID: "batch1", EventID: "evt1", NumberOfTickets: 10,
	})
	service := newTestBookingService(gatedEvent("evt1"), store, &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	_, err := service.Book(context.Background(), "user1", "evt1", "batch1", 1, "")

	assert.ErrorIs(t, err, status.ErrTokenRequired)
	assert.Zero(t, store.bookingCount())
}

func TestBookingService_Book_TokenBooksOnlyOnce(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID:              "batch1",
		EventID:         "evt1",
		Price:           decimal.NewFromInt(25),
		NumberOfTickets: 10,
	})
	store.grantToken("user1", "evt1")
	queue := &fakeWaitingRoom{}
	service := newTestBookingService(gatedEvent("evt1"), store, queue, &fakeBookingTokens{}, nil)

	ctx := context.Background()

	booking, err := service.Book(ctx, "user1", "evt1", "batch1", 2, "tok")
	require.NoError(t, err)
	assert.Equal(t, 2, booking.TicketCount)
	assert.Equal(t, []string{"user1"}, queue.revoked)

	_, err = service.Book(ctx, "user1", "evt1", "batch1", 2, "tok")
	assert.ErrorIs(t, err, status.ErrTokenInvalid)

	assert.Equal(t, 2, store.sold("batch1"))
	assert.Equal(t, 1, store.bookingCount())
}

func TestBookingService_Book_BatchMismatch(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID: "batch1", EventID: "evt2", NumberOfTickets: 10,
	})
	service := newTestBookingService(openEvent("evt1"), store, &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	_, err := service.Book(context.Background(), "user1", "evt1", "batch1", 1, "")

	assert.ErrorIs(t, err, status.ErrBatchMismatch)
}

func TestBookingService_Book_RejectsNonPositiveCount(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID: "batch1", EventID: "evt1", NumberOfTickets: 10,
	})
	service := newTestBookingService(openEvent("evt1"), store, &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	_, err := service.Book(context.Background(), "user1", "evt1", "batch1", 0, "")

	assert.ErrorIs(t, err, status.ErrInvalidTicketCount)
}

func TestBookingService_Book_InvalidTokenRejected(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID: "batch1", EventID: "evt1", NumberOfTickets: 10,
	})
	tokens := &fakeBookingTokens{validateErr: status.ErrTokenExpired}
	service := newTestBookingService(gatedEvent("evt1"), store, &fakeWaitingRoom{}, tokens, nil)

	_, err := service.Book(context.Background(), "user1", "evt1", "batch1", 1, "tok")

	assert.ErrorIs(t, err, status.ErrTokenExpired)
	assert.Zero(t, store.bookingCount())
}

func TestBookingService_Book_PublishesConfirmation(t *testing.T) {
	store := newMemBookingStore(&models.TicketBatch{
		ID:              "batch1",
		EventID:         "evt1",
		Price:           decimal.NewFromFloat(12.50),
		NumberOfTickets: 10,
	})
	notifier := &recordingNotifier{}
	service := newTestBookingService(openEvent("evt1"), store, &fakeWaitingRoom{}, &fakeBookingTokens{}, notifier)

	booking, err := service.Book(context.Background(), "user1", "evt1", "batch1", 3, "")

	require.NoError(t, err)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, []string{"user-user1"}, notifier.channels)
	assert.Equal(t, "booking_confirmed", notifier.messages[0]["type"])
	assert.Equal(t, booking.ID, notifier.messages[0]["booking_id"])
	assert.Equal(t, "37.5", notifier.messages[0]["amount"])
}

func TestBookingService_QueueStatus_TokenOutlivesAllowedSet(t *testing.T) {
	// Promotion rewrites the allowed set every cycle, so a user admitted a
	// few cycles back is no longer a member. Their stored token still
	// admits them.
	queue := &fakeWaitingRoom{allowed: false, positionErr: status.ErrNotQueued}
	tokens := &fakeBookingTokens{token: "tok123"}
	service := newTestBookingService(gatedEvent("evt1"), newMemBookingStore(), queue, tokens, nil)

	result, err := service.QueueStatus(context.Background(), "user1", "evt1")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "tok123", result.BookingToken)
}

func TestBookingService_QueueStatus_Waiting(t *testing.T) {
	queue := &fakeWaitingRoom{allowed: false, position: 7}
	tokens := &fakeBookingTokens{tokenErr: status.ErrTokenInvalid}
	service := newTestBookingService(gatedEvent("evt1"), newMemBookingStore(), queue, tokens, nil)

	result, err := service.QueueStatus(context.Background(), "user1", "evt1")

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Empty(t, result.BookingToken)
	assert.Equal(t, int64(7), result.Position)
}

func TestBookingService_QueueStatus_AllowedButTokenExpired(t *testing.T) {
	queue := &fakeWaitingRoom{allowed: true}
	tokens := &fakeBookingTokens{tokenErr: status.ErrTokenExpired}
	service := newTestBookingService(gatedEvent("evt1"), newMemBookingStore(), queue, tokens, nil)

	_, err := service.QueueStatus(context.Background(), "user1", "evt1")

	assert.ErrorIs(t, err, status.ErrTokenExpired)
}

func TestBookingService_QueueStatus_NotQueued(t *testing.T) {
	queue := &fakeWaitingRoom{allowed: false, positionErr: status.ErrNotQueued}
	tokens := &fakeBookingTokens{tokenErr: status.ErrTokenInvalid}
	service := newTestBookingService(gatedEvent("evt1"), newMemBookingStore(), queue, tokens, nil)

	_, err := service.QueueStatus(context.Background(), "user1", "evt1")

	assert.ErrorIs(t, err, status.ErrNotQueued)
}

func TestBookingService_StartBooking_QueueInactiveBypasses(t *testing.T) {
	service := newTestBookingService(openEvent("evt1"), newMemBookingStore(), &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	result, err := service.StartBooking(context.Background(), "user1", "evt1")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.False(t, result.Queued)
}

func TestBookingService_StartBooking_LiveTokenBypasses(t *testing.T) {
	tokens := &fakeBookingTokens{live: true}
	service := newTestBookingService(gatedEvent("evt1"), newMemBookingStore(), &fakeWaitingRoom{}, tokens, nil)

	result, err := service.StartBooking(context.Background(), "user1", "evt1")

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.False(t, result.Queued)
}

func TestBookingService_StartBooking_EnqueuesWhenGated(t *testing.T) {
	queue := &fakeWaitingRoom{enqueueAdded: true, enqueuePos: 12}
	service := newTestBookingService(gatedEvent("evt1"), newMemBookingStore(), queue, &fakeBookingTokens{}, nil)

	result, err := service.StartBooking(context.Background(), "user1", "evt1")

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.True(t, result.Queued)
	assert.True(t, result.Added)
	assert.Equal(t, int64(12), result.Position)
}

func TestBookingService_Book_UnknownEvent(t *testing.T) {
	service := newTestBookingService(&fakeEvents{events: map[string]*models.Event{}}, newMemBookingStore(), &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	_, err := service.Book(context.Background(), "user1", "missing", "batch1", 1, "")

	assert.ErrorIs(t, err, status.ErrEventNotFound)
}

func TestBookingService_Book_UnknownBatch(t *testing.T) {
	service := newTestBookingService(openEvent("evt1"), newMemBookingStore(), &fakeWaitingRoom{}, &fakeBookingTokens{}, nil)

	_, err := service.Book(context.Background(), "user1", "evt1", "missing", 1, "")

	assert.ErrorIs(t, err, status.ErrTicketBatchNotFound)
	assert.NotErrorIs(t, err, status.ErrBookingFailed)
}
