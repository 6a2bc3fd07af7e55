package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
)

const processedEventKeyPrefix = "orderservice:restaurant-event:"

func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}
	return client, nil
}

var _ service.ProcessedEvents = &ProcessedEvents{}

// ProcessedEvents keeps handled restaurant event ids for ttl.
type ProcessedEvents struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewProcessedEvents(client goredis.Cmdable, ttl time.Duration) *ProcessedEvents {
	return &ProcessedEvents{
		client: client,
		ttl:    ttl,
	}
}

func (p *ProcessedEvents) IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	n, err := p.client.Exists(ctx, processedEventKey(eventID)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up restaurant event %s", eventID)
	}
	return n > 0, nil
}

func (p *ProcessedEvents) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	err := p.client.Set(ctx, processedEventKey(eventID), time.Now().UTC().Format(time.RFC3339), p.ttl).Err()
	if err != nil {
		return errors.Wrapf(err, "failed to mark restaurant event %s", eventID)
	}
	return nil
}

func processedEventKey(eventID uuid.UUID) string {
	return processedEventKeyPrefix + eventID.String()
}
