package notify

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	channelPayments = "billing.payments"
	channelCredits  = "billing.credits"
	channelTrials   = "billing.trials"
)

// RedisDispatcher publishes notifications on Redis pub/sub channels.
// Downstream services (mailers, in-app alerts) subscribe to the
// billing.* channels.
type RedisDispatcher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDispatcher creates a dispatcher backed by the given Redis client.
func NewRedisDispatcher(client *redis.Client, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, logger: logger}
}

func (d *RedisDispatcher) PaymentSucceeded(ctx context.Context, notice PaymentNotice) {
	d.publish(ctx, channelPayments, "payment_succeeded", notice)
}

func (d *RedisDispatcher) PaymentFailed(ctx context.Context, notice PaymentNotice) {
	d.publish(ctx, channelPayments, "payment_failed", notice)
}

func (d *RedisDispatcher) LowCredits(ctx context.Context, notice CreditNotice) {
	d.publish(ctx, channelCredits, "low_credits", notice)
}

func (d *RedisDispatcher) TrialWillEnd(ctx context.Context, notice TrialNotice) {
	d.publish(ctx, channelTrials, "trial_will_end", notice)
}

type envelope struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

func (d *RedisDispatcher) publish(ctx context.Context, channel, kind string, payload interface{}) {
	body, err := json.Marshal(envelope{Kind: kind, Payload: payload})
	if err != nil {
		d.logger.Error("Failed to encode notification",
			zap.String("kind", kind),
			zap.Error(err))
		return
	}
	if err := d.client.Publish(ctx, channel, body).Err(); err != nil {
		d.logger.Warn("Failed to publish notification",
			zap.String("channel", channel),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
