package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
)

const (
	tradeStream = "events:trades"
	priceStream = "events:prices"
	// streamMaxLen bounds stream growth; consumers needing full history
	// should drain faster than the exchange trades.
	streamMaxLen = 10000
)

// RedisPublisher forwards events to Redis: a capped stream for replay and
// a pub/sub channel for live consumers.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis at addr and verifies the connection.
func NewRedisPublisher(addr string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) publish(ctx context.Context, stream string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return err
	}
	return p.client.Publish(ctx, stream, string(data)).Err()
}

func (p *RedisPublisher) PublishTrade(ctx context.Context, trade *exchange.Trade) error {
	return p.publish(ctx, tradeStream, trade)
}

func (p *RedisPublisher) PublishPriceTick(ctx context.Context, ticks []PriceTick) error {
	return p.publish(ctx, priceStream, ticks)
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
