package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"event-ticketing/monitoring"
)

// activeEventFinder resolves the event currently gated by the waiting
// room. At most one exists system wide.
type activeEventFinder interface {
	ActiveQueueEventID() (string, error)
}

// queuePromoter is the slice of the Queue Store the controller drives.
type queuePromoter interface {
	Promote(ctx context.Context, eventID string, count int) ([]string, error)
}

// tokenMinter mints booking tokens for promoted users and sweeps expired
// ones. The controller is the only writer of tokens besides the sweep.
type tokenMinter interface {
	Mint(userID, eventID string) (string, error)
	PurgeExpired() (int64, error)
}

// AdmissionService periodically promotes a batch of waiting users into the
// allowed set and hands each a time-boxed booking token.
type AdmissionService struct {
	events        activeEventFinder
	queue         queuePromoter
	tokens        tokenMinter
	notifier      Notifier
	batchSize     int
	interval      time.Duration
	sweepInterval time.Duration

	cycleMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewAdmissionService(events activeEventFinder, queue queuePromoter, tokens tokenMinter, notifier Notifier, batchSize int, interval, sweepInterval time.Duration) *AdmissionService {
	return &AdmissionService{
		events:        events,
		queue:         queue,
		tokens:        tokens,
		notifier:      notifier,
		batchSize:     batchSize,
		interval:      interval,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the recurring promotion loop and the token sweeper. Call
// Shutdown to stop both.
func (s *AdmissionService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("admission controller started", "interval", s.interval, "batchSize", s.batchSize)

		for {
			select {
			case <-ticker.C:
				s.RunCycle(ctx)
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunSweep()
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()
}

// RunSweep removes expired booking tokens. It runs on its own ticker so
// stale rows keep getting cleaned up even while no queue is active.
func (s *AdmissionService) RunSweep() {
	purged, err := s.tokens.PurgeExpired()
	if err != nil {
		// Not fatal, the next sweep retries.
		slog.Error("token sweep failed", "error", err)
		return
	}
	if purged > 0 {
		slog.Info("swept expired booking tokens", "purged", purged)
		monitoring.TrackTokensPurged(purged)
	}
}

// RunCycle executes one promotion cycle. Cycles are single-flight: a tick
// that fires while the previous cycle is still running is skipped rather
// than racing it on the same queue.
func (s *AdmissionService) RunCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		slog.Warn("admission cycle still running, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()

	eventID, err := s.events.ActiveQueueEventID()
	if err != nil {
		slog.Error("active queue lookup failed", "error", err)
		return
	}
	if eventID == "" {
		// No event has its queue active, nothing to promote.
		return
	}

	promoted, err := s.queue.Promote(ctx, eventID, s.batchSize)
	if err != nil {
		slog.Error("queue promotion failed", "eventID", eventID, "error", err)
		monitoring.TrackQueueOperation("promote", eventID, "error")
		return
	}

	for _, userID := range promoted {
		token, err := s.tokens.Mint(userID, eventID)
		if err != nil {
			// The user stays in the allowed set; the waiting-room poll
			// will not find a token and they re-poll, so log and move on.
			slog.Error("token mint failed", "userID", userID, "eventID", eventID, "error", err)
			continue
		}

		s.notifier.Publish(ctx, userChannel(userID), map[string]any{
			"type":          "queue_admitted",
			"event_id":      eventID,
			"booking_token": token,
		})
	}

	if len(promoted) > 0 {
		slog.Info("promoted users from queue", "eventID", eventID, "count", len(promoted))
		monitoring.TrackQueueOperation("promote", eventID, "success")
		monitoring.TrackPromoted(eventID, len(promoted))
	}
}

// Shutdown stops the loop and waits for an in-flight cycle to finish.
func (s *AdmissionService) Shutdown() {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("admission controller stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("timeout waiting for admission controller to stop")
	}
}
