package pause

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultRedisKey = "clinic:pause_window"

// RedisPersister keeps the pause window under a single redis key.
type RedisPersister struct {
	redis  *redis.Client
	key    string
	tracer trace.Tracer
}

// NewRedisPersister panics on a nil client, matching the other redis stores.
func NewRedisPersister(client *redis.Client, key string) *RedisPersister {
	if client == nil {
		panic("pause: redis client cannot be nil")
	}
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisPersister{
		redis:  client,
		key:    key,
		tracer: otel.Tracer("clinic.internal.pause"),
	}
}

var _ Persister = (*RedisPersister)(nil)

// Save writes the window; an inactive window deletes the key.
func (p *RedisPersister) Save(ctx context.Context, w Window) error {
	ctx, span := p.tracer.Start(ctx, "pause.save")
	defer span.End()

	if !w.Active {
		if err := p.redis.Del(ctx, p.key).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("pause: delete window: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(w)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("pause: marshal window: %w", err)
	}
	if err := p.redis.Set(ctx, p.key, data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("pause: store window: %w", err)
	}
	return nil
}

// Load returns nil when no pause has been persisted.
func (p *RedisPersister) Load(ctx context.Context) (*Window, error) {
	ctx, span := p.tracer.Start(ctx, "pause.load")
	defer span.End()

	data, err := p.redis.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("pause: load window: %w", err)
	}
	var w Window
	if err := json.Unmarshal(data, &w); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("pause: decode window: %w", err)
	}
	return &w, nil
}
