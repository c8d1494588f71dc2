package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/game/models"
)

// memoryOutbox mirrors RedisQueue semantics in memory
type memoryOutbox struct {
	mu      sync.Mutex
	pending map[int64][]models.ChatEvent
	dead    []models.ChatEvent
	forgot  []int64
}

func newMemoryOutbox(events ...models.ChatEvent) *memoryOutbox {
	o := &memoryOutbox{pending: map[int64][]models.ChatEvent{}}
	for _, ev := range events {
		o.pending[ev.ChatID] = append(o.pending[ev.ChatID], ev)
	}
	return o
}

func (o *memoryOutbox) Chats(ctx context.Context) ([]int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]int64, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	return ids, nil
}

func (o *memoryOutbox) Dequeue(ctx context.Context, chatID int64) (*models.ChatEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	queue := o.pending[chatID]
	if len(queue) == 0 {
		return nil, ErrQueueEmpty
	}
	ev := queue[0]
	o.pending[chatID] = queue[1:]
	return &ev, nil
}

func (o *memoryOutbox) Retry(ctx context.Context, ev *models.ChatEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev.Attempts++
	o.pending[ev.ChatID] = append(o.pending[ev.ChatID], *ev)
	return nil
}

func (o *memoryOutbox) DeadLetter(ctx context.Context, ev *models.ChatEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev.Attempts++
	o.dead = append(o.dead, *ev)
	return nil
}

func (o *memoryOutbox) Forget(ctx context.Context, chatID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, chatID)
	o.forgot = append(o.forgot, chatID)
	return nil
}

type mockHub struct {
	mock.Mock
}

func (m *mockHub) BroadcastToChat(chatID int64, message []byte) error {
	args := m.Called(chatID, message)
	return args.Error(0)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveAuctions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestDrainDeliversAndForgets(t *testing.T) {
	outbox := newMemoryOutbox(
		models.ChatEvent{ID: "a", ChatID: 1, Kind: models.EventNarration, Text: "rolled"},
		models.ChatEvent{ID: "b", ChatID: 1, Kind: models.EventNarration, Text: "bought"},
	)
	hub := new(mockHub)
	hub.On("BroadcastToChat", int64(1), mock.Anything).Return(nil).Twice()

	w := NewWorker(outbox, hub, nil, zap.NewNop())
	w.drain(context.Background())

	hub.AssertExpectations(t)
	assert.Equal(t, []int64{1}, outbox.forgot)
	assert.Empty(t, outbox.dead)
}

func TestDrainRetriesOncePerTickThenDeadLetters(t *testing.T) {
	outbox := newMemoryOutbox(models.ChatEvent{ID: "a", ChatID: 7, Kind: models.EventNarration, Text: "lost"})
	hub := new(mockHub)
	hub.On("BroadcastToChat", int64(7), mock.Anything).Return(errors.New("no listeners"))

	w := NewWorker(outbox, hub, nil, zap.NewNop())
	w.SetMaxAttempts(3)

	w.drain(context.Background())
	hub.AssertNumberOfCalls(t, "BroadcastToChat", 1)
	assert.Empty(t, outbox.dead)
	require.Len(t, outbox.pending[7], 1)
	assert.Equal(t, 1, outbox.pending[7][0].Attempts)

	w.drain(context.Background())
	hub.AssertNumberOfCalls(t, "BroadcastToChat", 2)
	assert.Empty(t, outbox.dead)

	w.drain(context.Background())
	hub.AssertNumberOfCalls(t, "BroadcastToChat", 3)
	require.Len(t, outbox.dead, 1)
	assert.Equal(t, "a", outbox.dead[0].ID)
	assert.Equal(t, 3, outbox.dead[0].Attempts)
	assert.Empty(t, outbox.pending[7])
}

func TestDrainKeepsDeliveringAfterFailure(t *testing.T) {
	outbox := newMemoryOutbox(
		models.ChatEvent{ID: "a", ChatID: 7, Kind: models.EventNarration, Text: "first"},
		models.ChatEvent{ID: "b", ChatID: 7, Kind: models.EventNarration, Text: "second"},
	)
	hub := new(mockHub)
	hub.On("BroadcastToChat", int64(7), mock.Anything).Return(errors.New("write failed")).Once()
	hub.On("BroadcastToChat", int64(7), mock.Anything).Return(nil).Once()

	w := NewWorker(outbox, hub, nil, zap.NewNop())
	w.drain(context.Background())

	hub.AssertExpectations(t)
	require.Len(t, outbox.pending[7], 1)
	assert.Equal(t, "a", outbox.pending[7][0].ID)
}

func TestWorkerObservesAuctions(t *testing.T) {
	outbox := newMemoryOutbox()
	observer := new(mockObserver)
	observed := make(chan struct{}, 16)
	observer.On("ObserveAuctions", mock.Anything).Return(1, nil).Run(func(mock.Arguments) {
		select {
		case observed <- struct{}{}:
		default:
		}
	})

	w := NewWorker(outbox, new(mockHub), observer, zap.NewNop())
	w.SetIntervals(10*time.Millisecond, 10*time.Millisecond)
	w.Start()

	select {
	case <-observed:
	case <-time.After(2 * time.Second):
		t.Fatal("auction observer never ran")
	}
	w.Stop()
}

func TestOutboxKeys(t *testing.T) {
	assert.Equal(t, "chat:-42:outbox", outboxKey(-42))
	assert.Equal(t, "chat:-42:outbox:dead", deadLetterKey(-42))
}
