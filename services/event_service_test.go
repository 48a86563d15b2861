package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeQueueState struct {
	cleared  []string
	active   []string
	clearErr error
	syncErr  error
}

func (f *fakeQueueState) Clear(ctx context.Context, eventID string) error {
	f.cleared = append(f.cleared, eventID)
	return f.clearErr
}

func (f *fakeQueueState) SyncActiveEvent(ctx context.Context, eventID string) error {
	f.active = append(f.active, eventID)
	return f.syncErr
}

func TestEventService_SyncQueueState_ActivationClearsDisplacedQueues(t *testing.T) {
	queue := &fakeQueueState{}
	service := &EventService{queue: queue}

	service.syncQueueState(context.Background(), "evt2", true, []string{"evt1"})

	assert.Equal(t, []string{"evt1"}, queue.cleared)
	assert.Equal(t, []string{"evt2"}, queue.active)
}

func TestEventService_SyncQueueState_DeactivationDropsQueueAndKey(t *testing.T) {
	queue := &fakeQueueState{}
	service := &EventService{queue: queue}

	service.syncQueueState(context.Background(), "evt1", false, []string{"evt1"})

	assert.Equal(t, []string{"evt1"}, queue.cleared)
	assert.Equal(t, []string{""}, queue.active)
}

func TestEventService_SyncQueueState_AlreadyInactiveIsNoop(t *testing.T) {
	queue := &fakeQueueState{}
	service := &EventService{queue: queue}

	service.syncQueueState(context.Background(), "evt1", false, nil)

	assert.Empty(t, queue.cleared)
	assert.Empty(t, queue.active)
}

func TestEventService_SyncQueueState_RedisErrorsAreSwallowed(t *testing.T) {
	queue := &fakeQueueState{
		clearErr: errors.New("redis down"),
		syncErr:  errors.New("redis down"),
	}
	service := &EventService{queue: queue}

	// The database flag is authoritative; Redis hiccups must not undo the
	// toggle, both calls are still attempted.
	service.syncQueueState(context.Background(), "evt2", true, []string{"evt1"})

	assert.Equal(t, []string{"evt1"}, queue.cleared)
	assert.Equal(t, []string{"evt2"}, queue.active)
}
