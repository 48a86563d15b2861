package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	queueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_length_total",
			Help: "Current waiting-room length per event",
		},
		[]string{"event_id"},
	)

	allowedUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_allowed_users_total",
			Help: "Users currently in the allowed set per event",
		},
		[]string{"event_id"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "event_id", "status"},
	)

	promotedUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_promoted_users_total",
			Help: "Users promoted out of the waiting room per event",
		},
		[]string{"event_id"},
	)

	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_reservations_total",
			Help: "Ticket reservation outcomes per event",
		},
		[]string{"event_id", "status"},
	)

	tokensPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_tokens_purged_total",
			Help: "Expired booking tokens removed by the sweeper",
		},
	)
)

// TrackQueueOperation counts a queue operation outcome.
func TrackQueueOperation(operation, eventID, status string) {
	queueOperations.WithLabelValues(operation, eventID, status).Inc()
}

// TrackPromoted counts users promoted by an admission cycle.
func TrackPromoted(eventID string, count int) {
	promotedUsers.WithLabelValues(eventID).Add(float64(count))
}

// TrackReservation counts a reservation outcome (confirmed / rejected).
func TrackReservation(eventID, status string) {
	reservations.WithLabelValues(eventID, status).Inc()
}

// TrackTokensPurged counts swept booking tokens.
func TrackTokensPurged(count int64) {
	tokensPurged.Add(float64(count))
}

// Monitor samples queue gauges from Redis in the background.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run collects gauges every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectQueueMetrics(ctx)
		}
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	waitingKeys, _ := m.redis.Keys(ctx, "queue:order:*").Result()
	for _, key := range waitingKeys {
		eventID := key[len("queue:order:"):]
		length, _ := m.redis.LLen(ctx, key).Result()
		queueLength.WithLabelValues(eventID).Set(float64(length))
	}

	allowedKeys, _ := m.redis.Keys(ctx, "queue:allowed:*").Result()
	for _, key := range allowedKeys {
		eventID := key[len("queue:allowed:"):]
		count, _ := m.redis.SCard(ctx, key).Result()
		allowedUsers.WithLabelValues(eventID).Set(float64(count))
	}
}
