package events

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix prefixes the redis channel, the event name is appended.
const DefaultChannelPrefix = "registration."

// RedisClient is the subset of *redis.Client used by the publisher.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events on redis pub/sub channels.
type RedisPublisher struct {
	client RedisClient
	prefix string
}

var _ registration.EventBus = (*RedisPublisher)(nil)

func NewRedisPublisher(client RedisClient) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: DefaultChannelPrefix,
	}
}

// WithChannelPrefix overrides the channel prefix.
func (p *RedisPublisher) WithChannelPrefix(prefix string) *RedisPublisher {
	p.prefix = prefix
	return p
}

// Channel returns the channel an event is published on.
func (p *RedisPublisher) Channel(name registration.EventName) string {
	return p.prefix + string(name)
}

func (p *RedisPublisher) Emit(ctx context.Context, evt registration.Event) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, p.Channel(evt.Name), data).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish event to redis")
	}
	return nil
}

// NewRedisClient connects to addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
