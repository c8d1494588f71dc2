package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/game/models"
)

// ErrQueueEmpty is returned by Dequeue when a chat has nothing pending
var ErrQueueEmpty = errors.New("queue is empty")

const outboxChatsKey = "outbox:chats"

// Dead letters of a chat are capped and expire after the last failure
const (
	deadLetterCap = 100
	deadLetterTTL = 24 * time.Hour
)

func outboxKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:outbox", chatID)
}

func deadLetterKey(chatID int64) string {
	return outboxKey(chatID) + ":dead"
}

// RedisQueue is the per-chat outbox of narration events
type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisQueue creates a queue on an existing client
func NewRedisQueue(client *redis.Client, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		logger: logger,
	}
}

// Publish appends an event to its chat's outbox
func (q *RedisQueue) Publish(ctx context.Context, ev models.ChatEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	msgJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, outboxKey(ev.ChatID), msgJSON)
	pipe.SAdd(ctx, outboxChatsKey, ev.ChatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push event to outbox: %w", err)
	}

	q.logger.Debug("Event enqueued",
		zap.Int64("chatId", ev.ChatID),
		zap.String("kind", string(ev.Kind)),
		zap.String("eventId", ev.ID))
	return nil
}

// Dequeue pops the oldest event of a chat
func (q *RedisQueue) Dequeue(ctx context.Context, chatID int64) (*models.ChatEvent, error) {
	result, err := q.client.LPop(ctx, outboxKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop event from outbox: %w", err)
	}

	var ev models.ChatEvent
	if err := json.Unmarshal([]byte(result), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &ev, nil
}

// Retry puts an event back at the tail of its outbox
func (q *RedisQueue) Retry(ctx context.Context, ev *models.ChatEvent) error {
	ev.Attempts++
	msgJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, outboxKey(ev.ChatID), msgJSON)
	pipe.SAdd(ctx, outboxChatsKey, ev.ChatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push event for retry: %w", err)
	}

	q.logger.Info("Event requeued for retry",
		zap.Int64("chatId", ev.ChatID),
		zap.String("eventId", ev.ID),
		zap.Int("attempts", ev.Attempts))
	return nil
}

// DeadLetter parks an undeliverable event
func (q *RedisQueue) DeadLetter(ctx context.Context, ev *models.ChatEvent) error {
	ev.Attempts++
	msgJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := deadLetterKey(ev.ChatID)
	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, key, msgJSON)
	pipe.LTrim(ctx, key, -deadLetterCap, -1)
	pipe.Expire(ctx, key, deadLetterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push event to dead letter queue: %w", err)
	}

	q.logger.Warn("Event moved to dead letter queue",
		zap.Int64("chatId", ev.ChatID),
		zap.String("eventId", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.Int("attempts", ev.Attempts))
	return nil
}

// Chats lists chats that may have pending events
func (q *RedisQueue) Chats(ctx context.Context) ([]int64, error) {
	members, err := q.client.SMembers(ctx, outboxChatsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list outboxes: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			q.logger.Warn("Ignoring malformed outbox member", zap.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Forget drops an emptied chat from the outbox set. It re-adds the chat if
// an event slipped in meanwhile.
func (q *RedisQueue) Forget(ctx context.Context, chatID int64) error {
	if err := q.client.SRem(ctx, outboxChatsKey, chatID).Err(); err != nil {
		return err
	}
	n, err := q.client.LLen(ctx, outboxKey(chatID)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return q.client.SAdd(ctx, outboxChatsKey, chatID).Err()
	}
	return nil
}

// Length returns the number of pending events of a chat
func (q *RedisQueue) Length(ctx context.Context, chatID int64) (int64, error) {
	return q.client.LLen(ctx, outboxKey(chatID)).Result()
}

// DeadLetters returns the parked events of a chat, oldest first
func (q *RedisQueue) DeadLetters(ctx context.Context, chatID int64) ([]models.ChatEvent, error) {
	raw, err := q.client.LRange(ctx, deadLetterKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]models.ChatEvent, 0, len(raw))
	for _, item := range raw {
		var ev models.ChatEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Clear removes a chat's outbox and its dead letters
func (q *RedisQueue) Clear(ctx context.Context, chatID int64) error {
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, outboxKey(chatID), deadLetterKey(chatID))
	pipe.SRem(ctx, outboxChatsKey, chatID)
	_, err := pipe.Exec(ctx)
	return err
}
