package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"

	"github.com/redis/go-redis/v9"
)

// Redis key layout. The membership set answers "is this user queued"
// without scanning, the order list preserves arrival order, the allowed
// set holds the users promoted by the last admission cycle. Every compound
// mutation runs as a single Lua script so the set and the list can never
// be observed half-updated.
func waitingSetKey(eventID string) string  { return fmt.Sprintf("queue:users:%s", eventID) }
func waitingListKey(eventID string) string { return fmt.Sprintf("queue:order:%s", eventID) }
func allowedSetKey(eventID string) string  { return fmt.Sprintf("queue:allowed:%s", eventID) }

func activeEventKey() string { return "queue:active_event" }

const enqueueScript = `
if redis.call("SADD", KEYS[1], ARGV[1]) == 1 then
	redis.call("RPUSH", KEYS[2], ARGV[1])
	return {1, redis.call("LLEN", KEYS[2])}
end
local list = redis.call("LRANGE", KEYS[2], 0, -1)
for i, v in ipairs(list) do
	if v == ARGV[1] then
		return {0, i}
	end
end
return {0, 0}
`

const positionScript = `
local list = redis.call("LRANGE", KEYS[1], 0, -1)
for i, v in ipairs(list) do
	if v == ARGV[1] then
		return i
	end
end
return 0
`

const promoteScript = `
redis.call("DEL", KEYS[3])
local promoted = {}
for i = 1, tonumber(ARGV[1]) do
	local user = redis.call("LPOP", KEYS[1])
	if not user then
		break
	end
	redis.call("SREM", KEYS[2], user)
	redis.call("SADD", KEYS[3], user)
	promoted[#promoted + 1] = user
end
if #promoted > 0 then
	redis.call("EXPIRE", KEYS[3], tonumber(ARGV[2]))
end
return promoted
`

const dequeueScript = `
redis.call("SREM", KEYS[1], ARGV[1])
return redis.call("LREM", KEYS[2], 0, ARGV[1])
`

// QueueService is the waiting-room store for queue-gated events.
type QueueService struct {
	Redis      *redis.Client
	notifier   Notifier
	allowedTTL time.Duration
}

func NewQueueService(redisClient *redis.Client, notifier Notifier, allowedTTL time.Duration) *QueueService {
	return &QueueService{
		Redis:      redisClient,
		notifier:   notifier,
		allowedTTL: allowedTTL,
	}
}

// Enqueue adds the user to the event's waiting room. Joining twice is
// idempotent: the user keeps their original position and added is false.
func (s *QueueService) Enqueue(ctx context.Context, eventID, userID string) (added bool, position int64, err error) {
	res, err := s.Redis.Eval(ctx, enqueueScript,
		[]string{waitingSetKey(eventID), waitingListKey(eventID)},
		userID,
	).Result()
	if err != nil {
		return false, 0, fmt.Errorf("enqueue user %s: %w", userID, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("enqueue user %s: unexpected script reply %v", userID, res)
	}

	added = vals[0].(int64) == 1
	position = vals[1].(int64)

	if added {
		s.notifier.Publish(ctx, userChannel(userID), map[string]any{
			"type":     "queue_joined",
			"event_id": eventID,
			"position": position,
		})
	}

	return added, position, nil
}

// Position returns the user's 1-based distance from the head of the queue.
func (s *QueueService) Position(ctx context.Context, eventID, userID string) (int64, error) {
	pos, err := s.Redis.Eval(ctx, positionScript,
		[]string{waitingListKey(eventID)},
		userID,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("queue position for user %s: %w", userID, err)
	}
	if pos == 0 {
		return 0, status.ErrNotQueued
	}
	return pos, nil
}

// Promote pops up to count users from the head of the queue and replaces
// the event's allowed set with them. The pop, the membership removal and
// the allowed-set rewrite are one atomic script: a concurrent Position or
// Enqueue sees either the pre- or the post-promotion queue, never a
// partial pop.
func (s *QueueService) Promote(ctx context.Context, eventID string, count int) ([]string, error) {
	ttl := int64(s.allowedTTL.Seconds())
	res, err := s.Redis.Eval(ctx, promoteScript,
		[]string{waitingListKey(eventID), waitingSetKey(eventID), allowedSetKey(eventID)},
		count, ttl,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("promote queue for event %s: %w", eventID, err)
	}

	vals, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("promote queue for event %s: unexpected script reply %v", eventID, res)
	}

	promoted := make([]string, 0, len(vals))
	for _, v := range vals {
		userID, ok := v.(string)
		if !ok {
			continue
		}
		promoted = append(promoted, userID)
	}

	return promoted, nil
}

// IsAllowed reports whether the user was promoted by the last admission
// cycle. Token validity, not allowed-set membership, is the booking gate;
// this only drives the waiting-room poll.
func (s *QueueService) IsAllowed(ctx context.Context, eventID, userID string) (bool, error) {
	allowed, err := s.Redis.SIsMember(ctx, allowedSetKey(eventID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("allowed check for user %s: %w", userID, err)
	}
	return allowed, nil
}

// Dequeue removes the user from the waiting room (explicit withdrawal).
func (s *QueueService) Dequeue(ctx context.Context, eventID, userID string) error {
	if err := s.Redis.Eval(ctx, dequeueScript,
		[]string{waitingSetKey(eventID), waitingListKey(eventID)},
		userID,
	).Err(); err != nil {
		return fmt.Errorf("dequeue user %s: %w", userID, err)
	}

	s.notifier.Publish(ctx, userChannel(userID), map[string]any{
		"type":     "queue_left",
		"event_id": eventID,
	})

	return nil
}

// Revoke drops the user from the allowed set, used once their booking
// token has been consumed.
func (s *QueueService) Revoke(ctx context.Context, eventID, userID string) error {
	return s.Redis.SRem(ctx, allowedSetKey(eventID), userID).Err()
}

// Length returns the number of users waiting for the event.
func (s *QueueService) Length(ctx context.Context, eventID string) (int64, error) {
	return s.Redis.LLen(ctx, waitingListKey(eventID)).Result()
}

// SyncActiveEvent mirrors the queue_active flag into Redis so monitoring
// and external consumers see the same state as the database. An empty
// eventID means no queue is active.
func (s *QueueService) SyncActiveEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return s.Redis.Del(ctx, activeEventKey()).Err()
	}
	return s.Redis.Set(ctx, activeEventKey(), eventID, 0).Err()
}

// Clear wipes the event's waiting room and allowed set.
func (s *QueueService) Clear(ctx context.Context, eventID string) error {
	return s.Redis.Del(ctx,
		waitingListKey(eventID),
		waitingSetKey(eventID),
		allowedSetKey(eventID),
	).Err()
}

// Metrics returns queue length and allowed-set size for dashboards.
func (s *QueueService) Metrics(ctx context.Context, eventID string) (*models.QueueMetrics, error) {
	waiting, err := s.Redis.LLen(ctx, waitingListKey(eventID)).Result()
	if err != nil {
		return nil, err
	}
	allowed, err := s.Redis.SCard(ctx, allowedSetKey(eventID)).Result()
	if err != nil {
		return nil, err
	}
	return &models.QueueMetrics{
		EventID:      eventID,
		TotalInQueue: waiting,
		AllowedCount: allowed,
		LastUpdated:  time.Now(),
	}, nil
}

// BroadcastPositions runs until ctx is cancelled, periodically publishing
// queue positions for whichever event currently has its queue active, so
// waiting clients can render a live counter without polling.
func (s *QueueService) BroadcastPositions(ctx context.Context, activeEvent func() (string, error), interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eventID, err := activeEvent()
			if err != nil {
				slog.Error("broadcast positions: active queue lookup failed", "error", err)
				continue
			}
			if eventID == "" {
				continue
			}
			s.broadcastPositionsOnce(ctx, eventID)
		}
	}
}

func (s *QueueService) broadcastPositionsOnce(ctx context.Context, eventID string) {
	users, err := s.Redis.LRange(ctx, waitingListKey(eventID), 0, -1).Result()
	if err != nil {
		slog.Error("broadcast positions", "eventID", eventID, "error", err)
		return
	}

	for i, userID := range users {
		s.notifier.Publish(ctx, userChannel(userID), map[string]any{
			"type":     "queue_position",
			"event_id": eventID,
			"position": i + 1,
		})
	}
}

func userChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}
