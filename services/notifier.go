package services

import (
	"context"
	"log/slog"

	"event-ticketing/utils"

	pubnub "github.com/pubnub/go/v7"
)

// Notifier is the fire-and-forget notification hook the queue, admission
// and booking services call after mutating state. Delivery failures must
// never fail the calling operation.
type Notifier interface {
	Publish(ctx context.Context, channel string, message map[string]any)
}

// PubNubNotifier pushes realtime updates (queue position, promotion,
// booking confirmation) to per-user channels.
type PubNubNotifier struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubNotifier(publishKey, subscribeKey, secretKey string) *PubNubNotifier {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId("event-ticketing-server"))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	cfg.SecretKey = secretKey

	return &PubNubNotifier{
		pn:      pubnub.NewPubNub(cfg),
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (n *PubNubNotifier) Publish(ctx context.Context, channel string, message map[string]any) {
	err := n.breaker.Execute(func() error {
		_, _, err := n.pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	})
	if err != nil {
		slog.Warn("notification publish failed", "channel", channel, "error", err)
	}
}

// NoopNotifier is used when no PubNub keys are configured and in tests.
type NoopNotifier struct{}

func (NoopNotifier) Publish(ctx context.Context, channel string, message map[string]any) {}
