package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/game/models"
)

// Outbox is the part of the queue the worker drains
type Outbox interface {
	Chats(ctx context.Context) ([]int64, error)
	Dequeue(ctx context.Context, chatID int64) (*models.ChatEvent, error)
	Retry(ctx context.Context, ev *models.ChatEvent) error
	DeadLetter(ctx context.Context, ev *models.ChatEvent) error
	Forget(ctx context.Context, chatID int64) error
}

// Broadcaster delivers an encoded event to the subscribers of a chat
type Broadcaster interface {
	BroadcastToChat(chatID int64, message []byte) error
}

// AuctionObserver reloads matches with an open auction so expired ones settle
type AuctionObserver interface {
	ObserveAuctions(ctx context.Context) (int, error)
}

// maxBatch bounds how many events one chat may deliver per tick
const maxBatch = 64

// Worker drains outboxes into the hub and polls open auctions
type Worker struct {
	outbox       Outbox
	hub          Broadcaster
	observer     AuctionObserver
	logger       *zap.Logger
	maxAttempts  int
	outboxEvery  time.Duration
	auctionEvery time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a new queue worker
func NewWorker(outbox Outbox, hub Broadcaster, observer AuctionObserver, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		outbox:       outbox,
		hub:          hub,
		observer:     observer,
		logger:       logger,
		maxAttempts:  3,
		outboxEvery:  200 * time.Millisecond,
		auctionEvery: time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetMaxAttempts sets the maximum number of delivery attempts
func (w *Worker) SetMaxAttempts(maxAttempts int) {
	w.maxAttempts = maxAttempts
}

// SetIntervals sets the outbox drain and auction poll periods
func (w *Worker) SetIntervals(outbox, auctions time.Duration) {
	if outbox > 0 {
		w.outboxEvery = outbox
	}
	if auctions > 0 {
		w.auctionEvery = auctions
	}
}

// Start launches the drain and auction loops
func (w *Worker) Start() {
	w.logger.Info("Starting queue worker",
		zap.Duration("outboxInterval", w.outboxEvery),
		zap.Duration("auctionInterval", w.auctionEvery),
		zap.Int("maxAttempts", w.maxAttempts))

	w.wg.Add(2)
	go w.loop(w.outboxEvery, w.drain)
	go w.loop(w.auctionEvery, w.observe)
}

// Stop stops both loops and waits for them to return
func (w *Worker) Stop() {
	w.logger.Info("Stopping queue worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) loop(every time.Duration, tick func(ctx context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			tick(w.ctx)
		}
	}
}

// observe triggers lazy auction settlement for every tracked chat
func (w *Worker) observe(ctx context.Context) {
	if w.observer == nil {
		return
	}
	settled, err := w.observer.ObserveAuctions(ctx)
	if err != nil {
		w.logger.Error("Failed to observe auctions", zap.Error(err))
		return
	}
	if settled > 0 {
		w.logger.Info("Settled auctions", zap.Int("count", settled))
	}
}

// drain delivers pending events of every chat
func (w *Worker) drain(ctx context.Context) {
	chats, err := w.outbox.Chats(ctx)
	if err != nil {
		w.logger.Error("Failed to list outboxes", zap.Error(err))
		return
	}

	for _, chatID := range chats {
		w.drainChat(ctx, chatID)
	}
}

// drainChat delivers up to maxBatch events of one chat. Failed events are
// requeued only after the batch, so each tick makes at most one attempt per event.
func (w *Worker) drainChat(ctx context.Context, chatID int64) {
	var failed []*models.ChatEvent
	var causes []error
	defer func() {
		for i, ev := range failed {
			w.handleFailure(ctx, ev, causes[i])
		}
	}()

	for i := 0; i < maxBatch; i++ {
		ev, err := w.outbox.Dequeue(ctx, chatID)
		if errors.Is(err, ErrQueueEmpty) {
			if err := w.outbox.Forget(ctx, chatID); err != nil {
				w.logger.Warn("Failed to forget drained outbox", zap.Int64("chatId", chatID), zap.Error(err))
			}
			return
		}
		if err != nil {
			w.logger.Error("Failed to dequeue event", zap.Int64("chatId", chatID), zap.Error(err))
			return
		}

		if err := w.deliver(ev); err != nil {
			failed = append(failed, ev)
			causes = append(causes, err)
		}
	}
}

func (w *Worker) deliver(ev *models.ChatEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.hub.BroadcastToChat(ev.ChatID, payload)
}

func (w *Worker) handleFailure(ctx context.Context, ev *models.ChatEvent, cause error) {
	if ev.Attempts+1 < w.maxAttempts {
		w.logger.Info("Retrying event",
			zap.Int64("chatId", ev.ChatID),
			zap.String("eventId", ev.ID),
			zap.Int("attempt", ev.Attempts+1),
			zap.Error(cause))
		if err := w.outbox.Retry(ctx, ev); err != nil {
			w.logger.Error("Failed to requeue event", zap.String("eventId", ev.ID), zap.Error(err))
		}
		return
	}

	w.logger.Warn("Moving event to dead letter queue after max attempts",
		zap.Int64("chatId", ev.ChatID),
		zap.String("eventId", ev.ID),
		zap.Int("maxAttempts", w.maxAttempts),
		zap.Error(cause))
	if err := w.outbox.DeadLetter(ctx, ev); err != nil {
		w.logger.Error("Failed to move event to dead letter queue", zap.String("eventId", ev.ID), zap.Error(err))
	}
}
