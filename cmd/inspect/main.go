package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/config"
	"github.com/kekopoly/monopoly/internal/db/mongodb"
	"github.com/kekopoly/monopoly/internal/db/redis"
	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/models"
	"github.com/kekopoly/monopoly/internal/queue"
)

// inspect prints the stored match of a chat without changing it. An expired
// auction is shown as it would settle on the next command. Events that could
// not be delivered to the chat are listed after the status.
func main() {
	chatID := pflag.Int64P("chat", "c", 0, "chat id to inspect (required)")
	viewer := pflag.Int64P("as", "a", 0, "user id whose holdings are listed")
	raw := pflag.Bool("raw", false, "print the stored record as JSON")
	pflag.Parse()

	_ = godotenv.Load()

	if *chatID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --chat is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	client, err := redis.Connect(ctx, cfg.Redis, sugar)
	if err != nil {
		sugar.Warnf("Redis unavailable: %v", err)
		client = nil
	} else {
		defer client.Close()
	}

	rec, source, err := load(ctx, cfg, client, *chatID, sugar)
	if err != nil {
		fmt.Printf("Failed to load chat %d: %v\n", *chatID, err)
		os.Exit(1)
	}
	fmt.Printf("Loaded chat %d from %s (updated %s)\n", *chatID, source, rec.UpdatedAt.Format(time.RFC3339))

	if *raw {
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
	}

	g, settlement, err := engine.Deserialize(rec)
	if err != nil {
		fmt.Printf("Stored record is broken: %v\n", err)
		os.Exit(1)
	}
	if settlement != nil {
		fmt.Println(settlement.Narration().Text)
	}
	fmt.Println(g.Status(*viewer))

	if client != nil {
		printDeadLetters(ctx, queue.NewRedisQueue(client, logger), *chatID)
	}
}

func printDeadLetters(ctx context.Context, outbox *queue.RedisQueue, chatID int64) {
	pending, err := outbox.Length(ctx, chatID)
	if err != nil {
		fmt.Printf("Failed to read outbox: %v\n", err)
		return
	}
	dead, err := outbox.DeadLetters(ctx, chatID)
	if err != nil {
		fmt.Printf("Failed to read dead letters: %v\n", err)
		return
	}

	fmt.Printf("\nOutbox: %d pending, %d undelivered\n", pending, len(dead))
	for _, ev := range dead {
		fmt.Printf("  %s [%s] after %d attempts: %s\n", ev.Timestamp.Format(time.RFC3339), ev.Kind, ev.Attempts, ev.Text)
	}
}

func load(ctx context.Context, cfg *config.Config, client *goredis.Client, chatID int64, log *zap.SugaredLogger) (models.GameRecord, string, error) {
	if client != nil {
		rec, err := redis.NewGameStore(client, cfg.Redis.StateExpiry(), log).LoadGame(ctx, chatID)
		if err == nil {
			return rec, "redis", nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return rec, "", err
		}
	}

	if cfg.MongoDB.URI == "" {
		return models.GameRecord{}, "", models.ErrNotFound
	}
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB, log)
	if err != nil {
		return models.GameRecord{}, "", err
	}
	defer mongoClient.Disconnect(context.Background())

	matches := mongodb.NewMatchStore(mongoClient.Database(cfg.MongoDB.Database), cfg.MongoDB.MatchesColl)
	rec, err := matches.FindMatch(ctx, chatID)
	return rec, "mongodb", err
}
