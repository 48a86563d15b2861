package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventFinder struct {
	id  string
	err error
}

func (f *fakeEventFinder) ActiveQueueEventID() (string, error) {
	return f.id, f.err
}

type fakePromoter struct {
	users    []string
	err      error
	calls    int
	gotCount int
}

func (f *fakePromoter) Promote(ctx context.Context, eventID string, count int) ([]string, error) {
	f.calls++
	f.gotCount = count
	return f.users, f.err
}

type fakeMinter struct {
	minted     []string
	mintErrs   map[string]error
	purged     int64
	purgeErr   error
	purgeCalls int
}

func (f *fakeMinter) Mint(userID, eventID string) (string, error) {
	if err := f.mintErrs[userID]; err != nil {
		return "", err
	}
	f.minted = append(f.minted, userID)
	return "token-" + userID, nil
}

func (f *fakeMinter) PurgeExpired() (int64, error) {
	f.purgeCalls++
	return f.purged, f.purgeErr
}

type recordingNotifier struct {
	mu       sync.Mutex
	channels []string
	messages []map[string]any
}

func (n *recordingNotifier) Publish(ctx context.Context, channel string, message map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	n.messages = append(n.messages, message)
}

func TestAdmissionService_RunCycle_NoActiveQueue(t *testing.T) {
	promoter := &fakePromoter{}
	service := NewAdmissionService(
		&fakeEventFinder{id: ""},
		promoter,
		&fakeMinter{},
		NoopNotifier{},
		10, time.Minute, time.Minute,
	)

	service.RunCycle(context.Background())

	assert.Zero(t, promoter.calls)
}

func TestAdmissionService_RunCycle_PromotesAndMints(t *testing.T) {
	promoter := &fakePromoter{users: []string{"user1", "user2"}}
	minter := &fakeMinter{}
	notifier := &recordingNotifier{}

	service := NewAdmissionService(
		&fakeEventFinder{id: "evt1"},
		promoter,
		minter,
		notifier,
		10, time.Minute, time.Minute,
	)

	service.RunCycle(context.Background())

	assert.Equal(t, 1, promoter.calls)
	assert.Equal(t, 10, promoter.gotCount)
	assert.Equal(t, []string{"user1", "user2"}, minter.minted)

	require.Len(t, notifier.messages, 2)
	assert.Equal(t, []string{"user-user1", "user-user2"}, notifier.channels)
	assert.Equal(t, "queue_admitted", notifier.messages[0]["type"])
	assert.Equal(t, "evt1", notifier.messages[0]["event_id"])
	assert.Equal(t, "token-user1", notifier.messages[0]["booking_token"])
	assert.Equal(t, "token-user2", notifier.messages[1]["booking_token"])
}

func TestAdmissionService_RunCycle_MintFailureSkipsUser(t *testing.T) {
	promoter := &fakePromoter{users: []string{"user1", "user2"}}
	minter := &fakeMinter{mintErrs: map[string]error{"user1": errors.New("db down")}}
	notifier := &recordingNotifier{}

	service := NewAdmissionService(
		&fakeEventFinder{id: "evt1"},
		promoter,
		minter,
		notifier,
		10, time.Minute, time.Minute,
	)

	service.RunCycle(context.Background())

	assert.Equal(t, []string{"user2"}, minter.minted)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "token-user2", notifier.messages[0]["booking_token"])
}

func TestAdmissionService_RunCycle_PromoteErrorStopsCycle(t *testing.T) {
	promoter := &fakePromoter{err: errors.New("redis down")}
	minter := &fakeMinter{}

	service := NewAdmissionService(
		&fakeEventFinder{id: "evt1"},
		promoter,
		minter,
		NoopNotifier{},
		10, time.Minute, time.Minute,
	)

	service.RunCycle(context.Background())

	assert.Empty(t, minter.minted)
}

func TestAdmissionService_RunCycle_DoesNotSweepTokens(t *testing.T) {
	minter := &fakeMinter{}

	service := NewAdmissionService(
		&fakeEventFinder{id: "evt1"},
		&fakePromoter{},
		minter,
		NoopNotifier{},
		10, time.Minute, time.Minute,
	)

	service.RunCycle(context.Background())

	assert.Zero(t, minter.purgeCalls)
}

func TestAdmissionService_RunSweep_PurgesExpiredTokens(t *testing.T) {
	minter := &fakeMinter{purged: 3}

	service := NewAdmissionService(
		&fakeEventFinder{id: ""},
		&fakePromoter{},
		minter,
		NoopNotifier{},
		10, time.Minute, time.Minute,
	)

	service.RunSweep()
	service.RunSweep()

	assert.Equal(t, 2, minter.purgeCalls)
}

func TestAdmissionService_RunSweep_ErrorDoesNotPanic(t *testing.T) {
	minter := &fakeMinter{purgeErr: errors.New("db down")}

	service := NewAdmissionService(
		&fakeEventFinder{id: ""},
		&fakePromoter{},
		minter,
		NoopNotifier{},
		10, time.Minute, time.Minute,
	)

	service.RunSweep()

	assert.Equal(t, 1, minter.purgeCalls)
}

func TestAdmissionService_StartAndShutdown(t *testing.T) {
	service := NewAdmissionService(
		&fakeEventFinder{id: ""},
		&fakePromoter{},
		&fakeMinter{},
		NoopNotifier{},
		10, time.Hour, time.Hour,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	service.Shutdown()
}
