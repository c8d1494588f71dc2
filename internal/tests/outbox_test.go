package tests

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/config"
	redisdb "github.com/kekopoly/monopoly/internal/db/redis"
	"github.com/kekopoly/monopoly/internal/game/models"
	"github.com/kekopoly/monopoly/internal/queue"
)

// TestOutboxDeadLettersAgainstRedis checks that parked events are capped,
// expire, and are removed together with the outbox.
func TestOutboxDeadLettersAgainstRedis(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	connectCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := redisdb.Connect(connectCtx, cfg.Redis, zap.NewNop().Sugar())
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	chatID := -time.Now().UnixNano()
	outbox := queue.NewRedisQueue(client, zap.NewNop())
	defer outbox.Clear(ctx, chatID)

	for i := 0; i < 105; i++ {
		ev := &models.ChatEvent{ID: strconv.Itoa(i), ChatID: chatID, Kind: models.EventNarration}
		require.NoError(t, outbox.DeadLetter(ctx, ev))
	}

	dead, err := outbox.DeadLetters(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, dead, 100)
	assert.Equal(t, "5", dead[0].ID)
	assert.Equal(t, "104", dead[99].ID)

	ttl, err := client.TTL(ctx, "chat:"+strconv.FormatInt(chatID, 10)+":outbox:dead").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.NoError(t, outbox.Publish(ctx, models.ChatEvent{ChatID: chatID, Kind: models.EventNarration, Text: "pending"}))
	require.NoError(t, outbox.Clear(ctx, chatID))

	pending, err := outbox.Length(ctx, chatID)
	require.NoError(t, err)
	assert.Zero(t, pending)
	dead, err = outbox.DeadLetters(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, dead)
}
