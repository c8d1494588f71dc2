package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/game/models"
)

const openAuctionsKey = "auctions:open"

func gameKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:game", chatID)
}

func readyKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:ready", chatID)
}

// GameStore keeps the hot copy of every match, the lobby of each chat and
// the set of chats with an open auction
type GameStore struct {
	client  *redis.Client
	breaker *CircuitBreaker
	ttl     time.Duration
	logger  *zap.SugaredLogger
}

// NewGameStore creates a store whose keys expire after ttl without writes
func NewGameStore(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *GameStore {
	return &GameStore{
		client:  client,
		breaker: NewCircuitBreaker(5, 10*time.Second),
		ttl:     ttl,
		logger:  logger,
	}
}

// SaveGame stores the match record for a chat
func (s *GameStore) SaveGame(ctx context.Context, chatID int64, rec models.GameRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal game for chat %d: %w", chatID, err)
	}
	err = s.breaker.Execute(func() error {
		return s.client.Set(ctx, gameKey(chatID), blob, s.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to save game for chat %d: %w", chatID, err)
	}
	return nil
}

// LoadGame returns the match record for a chat or models.ErrNotFound
func (s *GameStore) LoadGame(ctx context.Context, chatID int64) (models.GameRecord, error) {
	var rec models.GameRecord
	var blob []byte
	err := s.breaker.Execute(func() error {
		var err error
		blob, err = s.client.Get(ctx, gameKey(chatID)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return rec, models.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load game for chat %d: %w", chatID, err)
	}
	if err := json.Unmarshal(blob, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode game for chat %d: %w", chatID, err)
	}
	return rec, nil
}

// DeleteGame drops the match record and the auction marker of a chat
func (s *GameStore) DeleteGame(ctx context.Context, chatID int64) error {
	return s.breaker.Execute(func() error {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, gameKey(chatID))
		pipe.SRem(ctx, openAuctionsKey, chatID)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// AddReady appends a seat to the chat's lobby. It reports false if the user
// was already waiting.
func (s *GameStore) AddReady(ctx context.Context, chatID int64, seat models.Seat) (bool, error) {
	seats, err := s.ReadySeats(ctx, chatID)
	if err != nil {
		return false, err
	}
	for _, existing := range seats {
		if existing.UserID == seat.UserID {
			return false, nil
		}
	}

	blob, err := json.Marshal(seat)
	if err != nil {
		return false, err
	}
	err = s.breaker.Execute(func() error {
		pipe := s.client.TxPipeline()
		pipe.RPush(ctx, readyKey(chatID), blob)
		pipe.Expire(ctx, readyKey(chatID), s.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to add seat for chat %d: %w", chatID, err)
	}
	return true, nil
}

// ReadySeats lists the lobby in join order
func (s *GameStore) ReadySeats(ctx context.Context, chatID int64) ([]models.Seat, error) {
	var raw []string
	err := s.breaker.Execute(func() error {
		var err error
		raw, err = s.client.LRange(ctx, readyKey(chatID), 0, -1).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read lobby for chat %d: %w", chatID, err)
	}

	seats := make([]models.Seat, 0, len(raw))
	for _, item := range raw {
		var seat models.Seat
		if err := json.Unmarshal([]byte(item), &seat); err != nil {
			s.logger.Warnw("Skipping malformed lobby entry", "chatID", chatID, "error", err)
			continue
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

// ClearReady empties the chat's lobby
func (s *GameStore) ClearReady(ctx context.Context, chatID int64) error {
	return s.breaker.Execute(func() error {
		return s.client.Del(ctx, readyKey(chatID)).Err()
	})
}

// TrackAuction marks a chat as having an auction that needs observing
func (s *GameStore) TrackAuction(ctx context.Context, chatID int64) error {
	return s.breaker.Execute(func() error {
		return s.client.SAdd(ctx, openAuctionsKey, chatID).Err()
	})
}

// UntrackAuction clears the auction marker of a chat
func (s *GameStore) UntrackAuction(ctx context.Context, chatID int64) error {
	return s.breaker.Execute(func() error {
		return s.client.SRem(ctx, openAuctionsKey, chatID).Err()
	})
}

// AuctionChats lists the chats with an open auction
func (s *GameStore) AuctionChats(ctx context.Context) ([]int64, error) {
	var members []string
	err := s.breaker.Execute(func() error {
		var err error
		members, err = s.client.SMembers(ctx, openAuctionsKey).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	return parseChatIDs(members, s.logger), nil
}

func parseChatIDs(members []string, logger *zap.SugaredLogger) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			logger.Warnw("Ignoring malformed chat id", "member", m)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Ping checks that redis answers
func (s *GameStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
