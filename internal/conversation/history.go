package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/clinic-scheduler/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// maxStoredHistory caps the transcript kept per sender.
const maxStoredHistory = 20

// HistoryStore keeps the assistant transcript per sender.
type HistoryStore interface {
	Load(ctx context.Context, senderID string) ([]llm.Message, error)
	Append(ctx context.Context, senderID string, msgs ...llm.Message) error
}

// MemoryHistory is a process-local HistoryStore.
type MemoryHistory struct {
	mu   sync.Mutex
	msgs map[string][]llm.Message
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{msgs: make(map[string][]llm.Message)}
}

func (h *MemoryHistory) Load(_ context.Context, senderID string) ([]llm.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]llm.Message(nil), h.msgs[senderID]...), nil
}

func (h *MemoryHistory) Append(_ context.Context, senderID string, msgs ...llm.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs[senderID] = capHistory(append(h.msgs[senderID], msgs...))
	return nil
}

// RedisHistory stores the transcript as one JSON value per sender.
type RedisHistory struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisHistory(client *redis.Client, tracer trace.Tracer) *RedisHistory {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.conversation.history")
	}
	return &RedisHistory{redis: client, tracer: tracer}
}

func (h *RedisHistory) Load(ctx context.Context, senderID string) ([]llm.Message, error) {
	ctx, span := h.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := h.redis.Get(ctx, historyKey(senderID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}
	var msgs []llm.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return msgs, nil
}

func (h *RedisHistory) Append(ctx context.Context, senderID string, msgs ...llm.Message) error {
	existing, err := h.Load(ctx, senderID)
	if err != nil {
		return err
	}
	ctx, span := h.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(capHistory(append(existing, msgs...)))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := h.redis.Set(ctx, historyKey(senderID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func historyKey(senderID string) string {
	return fmt.Sprintf("assistant_history:%s", senderID)
}

func capHistory(msgs []llm.Message) []llm.Message {
	if len(msgs) > maxStoredHistory {
		return msgs[len(msgs)-maxStoredHistory:]
	}
	return msgs
}
