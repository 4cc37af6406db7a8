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

var tracer = otel.Tracer("tablebot.internal.conversation")

// RedisStateStore keeps dialog state as JSON values with a TTL.
type RedisStateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{redis: client, ttl: ttl, tracer: tracer}
}

func bookingKey(conversationID string) string {
	return fmt.Sprintf("pending_booking:%s", conversationID)
}

func deletionKey(conversationID string) string {
	return fmt.Sprintf("pending_deletion:%s", conversationID)
}

func (s *RedisStateStore) LoadBooking(ctx context.Context, conversationID string) (*PendingBooking, error) {
	var booking PendingBooking
	found, err := s.load(ctx, "conversation.load_booking", bookingKey(conversationID), &booking)
	if err != nil || !found {
		return nil, err
	}
	return &booking, nil
}

// TakeBooking reads and deletes the pending booking in one GETDEL, so only
// one of several concurrent confirmations gets it.
func (s *RedisStateStore) TakeBooking(ctx context.Context, conversationID string) (*PendingBooking, error) {
	var booking PendingBooking
	found, err := s.take(ctx, "conversation.take_booking", bookingKey(conversationID), &booking)
	if err != nil || !found {
		return nil, err
	}
	return &booking, nil
}

func (s *RedisStateStore) SaveBooking(ctx context.Context, conversationID string, booking *PendingBooking) error {
	if booking == nil {
		return s.remove(ctx, "conversation.clear_booking", bookingKey(conversationID))
	}
	return s.save(ctx, "conversation.save_booking", bookingKey(conversationID), booking)
}

func (s *RedisStateStore) LoadDeletion(ctx context.Context, conversationID string) (*PendingDeletion, error) {
	var deletion PendingDeletion
	found, err := s.load(ctx, "conversation.load_deletion", deletionKey(conversationID), &deletion)
	if err != nil || !found {
		return nil, err
	}
	return &deletion, nil
}

func (s *RedisStateStore) SaveDeletion(ctx context.Context, conversationID string, deletion *PendingDeletion) error {
	if deletion == nil {
		return s.remove(ctx, "conversation.clear_deletion", deletionKey(conversationID))
	}
	return s.save(ctx, "conversation.save_deletion", deletionKey(conversationID), deletion)
}

func (s *RedisStateStore) load(ctx context.Context, spanName, key string, dst any) (bool, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	return s.decode(span, s.redis.Get(ctx, key), key, dst)
}

func (s *RedisStateStore) take(ctx context.Context, spanName, key string, dst any) (bool, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	return s.decode(span, s.redis.GetDel(ctx, key), key, dst)
}

func (s *RedisStateStore) decode(span trace.Span, cmd *redis.StringCmd, key string, dst any) (bool, error) {
	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("conversation: failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("conversation: failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStateStore) save(ctx context.Context, spanName, key string, value any) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) remove(ctx context.Context, spanName, key string) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete %s: %w", key, err)
	}
	return nil
}

var _ StateStore = (*RedisStateStore)(nil)
