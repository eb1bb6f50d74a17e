package websocket

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"webchat/internal/dto"
)

const roomChannelPrefix = "webchat:room:"

// LocalNotifier delivers events straight to this process's hub.
type LocalNotifier struct {
	hub *Hub
}

func NewLocalNotifier(hub *Hub) *LocalNotifier {
	return &LocalNotifier{hub: hub}
}

func (n *LocalNotifier) Notify(ctx context.Context, room, event string, payload any) error {
	frame, err := encode(room, event, payload)
	if err != nil {
		return err
	}
	return n.hub.Deliver(ctx, &Delivery{Room: room, Frame: frame})
}

// RedisNotifier publishes events on a per-room Redis channel so every
// server process subscribed with Subscribe fans them out to its clients.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, room, event string, payload any) error {
	frame, err := encode(room, event, payload)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, roomChannelPrefix+room, frame).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}

// Subscribe forwards every room channel into hub until ctx is done.
func (n *RedisNotifier) Subscribe(ctx context.Context, hub *Hub) error {
	sub := n.client.PSubscribe(ctx, roomChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("websocket subscribe: %w", err)
	}
	log.Info().Str("pattern", roomChannelPrefix+"*").Msg("[websocket] subscribed to redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			room := strings.TrimPrefix(msg.Channel, roomChannelPrefix)
			if err := hub.Deliver(ctx, &Delivery{Room: room, Frame: []byte(msg.Payload)}); err != nil {
				return nil
			}
		}
	}
}

func encode(room, event string, payload any) ([]byte, error) {
	if room == "" {
		return nil, fmt.Errorf("websocket publish: room required")
	}
	frame, err := dto.Frame(event, payload)
	if err != nil {
		return nil, fmt.Errorf("websocket publish: marshal payload: %w", err)
	}
	return frame, nil
}
