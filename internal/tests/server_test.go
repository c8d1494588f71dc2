package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/api"
	"github.com/kekopoly/monopoly/internal/api/handlers"
	"github.com/kekopoly/monopoly/internal/api/middleware/auth"
	"github.com/kekopoly/monopoly/internal/config"
	redisdb "github.com/kekopoly/monopoly/internal/db/redis"
	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/manager"
	"github.com/kekopoly/monopoly/internal/game/websocket"
	"github.com/kekopoly/monopoly/internal/queue"
)

// TestChatGameAgainstRedis plays the opening of a match through the HTTP API.
// It is skipped when no redis is reachable at the configured address.
func TestChatGameAgainstRedis(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.JWT.Secret = "integration-secret"

	logger := zap.NewNop()
	sugar := logger.Sugar()

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelConnect()
	client, err := redisdb.Connect(connectCtx, cfg.Redis, sugar)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatID := -time.Now().UnixNano()
	store := redisdb.NewGameStore(client, time.Hour, sugar)
	outbox := queue.NewRedisQueue(client, logger)
	defer func() {
		store.DeleteGame(context.Background(), chatID)
		store.ClearReady(context.Background(), chatID)
		outbox.Clear(context.Background(), chatID)
	}()

	hub := websocket.NewHub(ctx, sugar)
	go hub.Run()

	random := engine.NewRandom(7)
	games := manager.NewGameManager(store, nil, outbox, sugar, engine.WithDice(random), engine.WithDeck(random))
	server := api.NewServer(cfg, games, hub, map[string]handlers.Pinger{"redis": store}, sugar)
	defer server.Shutdown(context.Background())

	alice, err := auth.GenerateJWT(101, "alice", cfg.JWT.Secret, 1)
	require.NoError(t, err)
	bob, err := auth.GenerateJWT(202, "bob", cfg.JWT.Secret, 1)
	require.NoError(t, err)

	post := func(token, action string, body interface{}) *httptest.ResponseRecorder {
		var payload []byte
		if body != nil {
			payload, _ = json.Marshal(body)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/"+strconv.FormatInt(chatID, 10)+"/"+action, bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, post(alice, "enter", nil).Code)
	require.Equal(t, http.StatusOK, post(bob, "enter", nil).Code)

	rec := post(bob, "begin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Waiting for alice to roll the dice.")

	assert.Equal(t, http.StatusConflict, post(alice, "enter", nil).Code)

	rec = post(alice, "roll", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice has rolled")

	stored, err := store.LoadGame(ctx, chatID)
	require.NoError(t, err)
	assert.Len(t, stored.Players, 2)
	assert.Equal(t, chatID, stored.ChatID)

	pending, err := outbox.Length(ctx, chatID)
	require.NoError(t, err)
	assert.Positive(t, pending)

	rec = post(bob, "reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = store.LoadGame(ctx, chatID)
	assert.Error(t, err)

	// only the reset announcement survives in the outbox
	pending, err = outbox.Length(ctx, chatID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}
