package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/api"
	"github.com/kekopoly/monopoly/internal/api/handlers"
	"github.com/kekopoly/monopoly/internal/config"
	"github.com/kekopoly/monopoly/internal/db/mongodb"
	"github.com/kekopoly/monopoly/internal/db/redis"
	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/manager"
	"github.com/kekopoly/monopoly/internal/game/websocket"
	"github.com/kekopoly/monopoly/internal/queue"
)

func main() {
	production := pflag.Bool("production", false, "use the production JSON logger")
	pflag.Parse()

	_ = godotenv.Load()

	var logger *zap.Logger
	var err error
	if *production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := redis.Connect(ctx, cfg.Redis, sugar)
	if err != nil {
		sugar.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			sugar.Errorf("Failed to close Redis connection: %v", err)
		}
	}()
	store := redis.NewGameStore(redisClient, cfg.Redis.StateExpiry(), sugar)

	// The archive is optional; without it matches only live in redis
	var archive manager.Archive
	health := map[string]handlers.Pinger{"redis": store}
	if cfg.MongoDB.URI != "" {
		mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB, sugar)
		if err != nil {
			sugar.Warnf("Continuing without match archive: %v", err)
		} else {
			defer func() {
				if err := mongoClient.Disconnect(context.Background()); err != nil {
					sugar.Errorf("Failed to disconnect from MongoDB: %v", err)
				}
			}()
			matches := mongodb.NewMatchStore(mongoClient.Database(cfg.MongoDB.Database), cfg.MongoDB.MatchesColl)
			archive = matches
			health["mongodb"] = matches
		}
	}

	outbox := queue.NewRedisQueue(redisClient, logger)

	hub := websocket.NewHub(ctx, sugar)
	go hub.Run()
	sugar.Info("WebSocket hub is running")

	random := engine.NewRandom(cfg.Game.Seed)
	gameManager := manager.NewGameManager(store, archive, outbox, sugar,
		engine.WithDice(random), engine.WithDeck(random))

	worker := queue.NewWorker(outbox, hub, gameManager, logger)
	worker.SetMaxAttempts(cfg.Game.MaxDeliveryAttempts)
	worker.SetIntervals(cfg.Game.OutboxPoll(), cfg.Game.AuctionPoll())
	worker.Start()
	sugar.Info("Queue worker started")

	server := api.NewServer(cfg, gameManager, hub, health, sugar)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Failed to start the server: %v", err)
		}
	}()
	sugar.Infof("Server started on port %d", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	worker.Stop()
	sugar.Info("Queue worker stopped")

	sugar.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}
	cancel()

	sugar.Info("Server exited properly")
}
