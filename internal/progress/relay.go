package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelPrefix namespaces relay channels; the job id is appended.
const ChannelPrefix = "storyforge:progress:"

type envelope struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}

// RedisRelay mirrors progress messages between service instances over Redis
// pub/sub, so an observer connected to any instance sees every job.
type RedisRelay struct {
	client   *redis.Client
	bus      *Bus
	instance string
	logger   zerolog.Logger
}

func NewRedisRelay(client *redis.Client, bus *Bus, logger *zerolog.Logger) *RedisRelay {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "progress.relay").Logger()
	}
	return &RedisRelay{client: client, bus: bus, instance: uuid.NewString(), logger: l}
}

// Forward publishes msg on the job's channel.
func (r *RedisRelay) Forward(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(envelope{Origin: r.instance, Message: msg})
	if err != nil {
		return fmt.Errorf("progress: encode relay message: %w", err)
	}
	return r.client.Publish(ctx, ChannelPrefix+msg.JobID, payload).Err()
}

// Run re-delivers messages published by other instances until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("progress: subscribe relay: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.handle(m.Channel, []byte(m.Payload)); err != nil {
				r.logger.Warn().Err(err).Str("channel", m.Channel).Msg("discarding relay message")
			}
		}
	}
}

func (r *RedisRelay) handle(channel string, payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	if env.Origin == r.instance {
		return nil
	}
	if want := strings.TrimPrefix(channel, ChannelPrefix); env.Message.JobID != want {
		return fmt.Errorf("job id %q does not match channel", env.Message.JobID)
	}
	r.bus.Deliver(env.Message)
	return nil
}
