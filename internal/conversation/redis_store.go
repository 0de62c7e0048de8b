package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisContextStore keeps contexts as JSON values with a TTL.
type RedisContextStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisContextStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisContextStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.conversation.context")
	}
	return &RedisContextStore{redis: client, ttl: ttl, tracer: tracer}
}

var _ ContextStore = (*RedisContextStore)(nil)

func (s *RedisContextStore) Load(ctx context.Context, senderID string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_context")
	defer span.End()

	data, err := s.redis.Get(ctx, contextKey(senderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewContext(senderID), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load context: %w", err)
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode context: %w", err)
	}
	c.SenderID = senderID
	return &c, nil
}

func (s *RedisContextStore) Save(ctx context.Context, c *Context) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_context")
	defer span.End()

	cp := c.Clone()
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cp)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal context: %w", err)
	}
	if err := s.redis.Set(ctx, contextKey(c.SenderID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist context: %w", err)
	}
	return nil
}

func (s *RedisContextStore) Delete(ctx context.Context, senderID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_context")
	defer span.End()

	if err := s.redis.Del(ctx, contextKey(senderID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete context: %w", err)
	}
	return nil
}

func contextKey(senderID string) string {
	return fmt.Sprintf("conversation_context:%s", senderID)
}
