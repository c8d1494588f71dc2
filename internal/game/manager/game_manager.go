package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/models"
)

var (
	// ErrNoGame is returned for actions in a chat without a running match
	ErrNoGame = errors.New("no game in this chat")
	// ErrGameInProgress is returned when the lobby is used during a match
	ErrGameInProgress = errors.New("a game is already running in this chat")
)

// StateStore is the hot storage for matches, lobbies and auction tracking
type StateStore interface {
	SaveGame(ctx context.Context, chatID int64, rec models.GameRecord) error
	LoadGame(ctx context.Context, chatID int64) (models.GameRecord, error)
	DeleteGame(ctx context.Context, chatID int64) error
	AddReady(ctx context.Context, chatID int64, seat models.Seat) (bool, error)
	ReadySeats(ctx context.Context, chatID int64) ([]models.Seat, error)
	ClearReady(ctx context.Context, chatID int64) error
	TrackAuction(ctx context.Context, chatID int64) error
	UntrackAuction(ctx context.Context, chatID int64) error
	AuctionChats(ctx context.Context) ([]int64, error)
}

// Archive is the durable copy of every match
type Archive interface {
	SaveMatch(ctx context.Context, chatID int64, rec models.GameRecord) error
	FindMatch(ctx context.Context, chatID int64) (models.GameRecord, error)
	DeleteMatch(ctx context.Context, chatID int64) error
}

// Publisher queues narration for the chat's front ends
type Publisher interface {
	Publish(ctx context.Context, ev models.ChatEvent) error
}

// OutboxCleaner is implemented by publishers that keep undelivered events
// per chat. Reset uses it so a new match starts with an empty outbox.
type OutboxCleaner interface {
	Clear(ctx context.Context, chatID int64) error
}

// Reply is what a chat command returns to its caller
type Reply struct {
	Narration  engine.Narration   `json:"narration"`
	Settlement *engine.Settlement `json:"settlement,omitempty"`
	Result     interface{}        `json:"result,omitempty"`
}

// GameManager runs chat commands against the stored match of each chat.
// Calls for one chat are serialised; different chats run concurrently.
type GameManager struct {
	store     StateStore
	archive   Archive
	publisher Publisher
	logger    *zap.SugaredLogger
	opts      []engine.Option
	locksMu   sync.Mutex
	locks     map[int64]*chatLock
	now       func() time.Time
}

// NewGameManager creates a new game manager. archive and publisher may be nil.
func NewGameManager(store StateStore, archive Archive, publisher Publisher, logger *zap.SugaredLogger, opts ...engine.Option) *GameManager {
	return &GameManager{
		store:     store,
		archive:   archive,
		publisher: publisher,
		logger:    logger,
		opts:      append([]engine.Option{engine.WithLogger(logger)}, opts...),
		locks:     make(map[int64]*chatLock),
		now:       time.Now,
	}
}

// chatLock serialises the calls of one chat. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type chatLock struct {
	mu   sync.Mutex
	refs int
}

func (gm *GameManager) lock(chatID int64) func() {
	gm.locksMu.Lock()
	l, ok := gm.locks[chatID]
	if !ok {
		l = &chatLock{}
		gm.locks[chatID] = l
	}
	l.refs++
	gm.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		gm.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(gm.locks, chatID)
		}
		gm.locksMu.Unlock()
	}
}

// Enter adds the caller to the chat's lobby
func (gm *GameManager) Enter(ctx context.Context, chatID int64, seat models.Seat) (*Reply, error) {
	unlock := gm.lock(chatID)
	defer unlock()

	if _, err := gm.loadRecord(ctx, chatID); err == nil {
		return nil, ErrGameInProgress
	} else if !errors.Is(err, ErrNoGame) {
		return nil, err
	}

	added, err := gm.store.AddReady(ctx, chatID, seat)
	if err != nil {
		return nil, err
	}

	text := "You have entered a game"
	if !added {
		text = "You are already waiting for the game to begin"
	}
	reply := &Reply{Narration: engine.Narration{Text: text}}
	gm.publish(ctx, chatID, seat.UserID, models.EventLobby, reply.Narration)
	return reply, nil
}

// Begin starts a match with everyone in the lobby, in join order
func (gm *GameManager) Begin(ctx context.Context, chatID, caller int64) (*Reply, error) {
	unlock := gm.lock(chatID)
	defer unlock()

	if _, err := gm.loadRecord(ctx, chatID); err == nil {
		return nil, ErrGameInProgress
	} else if !errors.Is(err, ErrNoGame) {
		return nil, err
	}

	seats, err := gm.store.ReadySeats(ctx, chatID)
	if err != nil {
		return nil, err
	}
	g, err := engine.New(seats, gm.opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot begin game: %w", err)
	}
	if err := gm.save(ctx, chatID, g); err != nil {
		return nil, err
	}
	if err := gm.store.ClearReady(ctx, chatID); err != nil {
		gm.logger.Warnw("Failed to clear lobby", "chatID", chatID, "error", err)
	}

	gm.logger.Infow("Game started", "chatID", chatID, "players", len(seats), "by", caller)
	reply := &Reply{Narration: engine.Narration{
		Text: fmt.Sprintf("You have started a game with %d player(s).\n%s", len(seats), g.Status(caller)),
	}}
	gm.publish(ctx, chatID, caller, models.EventLobby, reply.Narration)
	return reply, nil
}

// Roll rolls the dice for the caller
func (gm *GameManager) Roll(ctx context.Context, chatID, caller int64) (*Reply, error) {
	return gm.act(ctx, chatID, caller, func(g *engine.Game) (engine.Narration, interface{}) {
		out, res := g.Roll(caller)
		if res == nil {
			return out, nil
		}
		return out, res
	})
}

// Buy buys the tile the caller stands on
func (gm *GameManager) Buy(ctx context.Context, chatID, caller int64) (*Reply, error) {
	return gm.act(ctx, chatID, caller, func(g *engine.Game) (engine.Narration, interface{}) {
		out, res := g.Buy(caller)
		if res == nil {
			return out, nil
		}
		return out, res
	})
}

// Auction opens bidding on the caller's tile
func (gm *GameManager) Auction(ctx context.Context, chatID, caller int64) (*Reply, error) {
	return gm.act(ctx, chatID, caller, func(g *engine.Game) (engine.Narration, interface{}) {
		out, res := g.Auction(caller)
		if res == nil {
			return out, nil
		}
		return out, res
	})
}

// Bid places a bid in the running auction
func (gm *GameManager) Bid(ctx context.Context, chatID, caller int64, amount int) (*Reply, error) {
	return gm.act(ctx, chatID, caller, func(g *engine.Game) (engine.Narration, interface{}) {
		out, res := g.Bid(caller, amount)
		if res == nil {
			return out, nil
		}
		return out, res
	})
}

// Rent claims rent from the current player
func (gm *GameManager) Rent(ctx context.Context, chatID, caller int64) (*Reply, error) {
	return gm.act(ctx, chatID, caller, func(g *engine.Game) (engine.Narration, interface{}) {
		out, res := g.Rent(caller)
		if res == nil {
			return out, nil
		}
		return out, res
	})
}

// Build adds a house to one of the caller's streets
func (gm *GameManager) Build(ctx context.Context, chatID, caller int64, tileID int) (*Reply, error) {
	return gm.act(ctx, chatID, caller, func(g *engine.Game) (engine.Narration, interface{}) {
		out, res := g.Build(caller, tileID)
		if res == nil {
			return out, nil
		}
		return out, res
	})
}

// Status describes the match from the caller's point of view
func (gm *GameManager) Status(ctx context.Context, chatID, caller int64) (*Reply, error) {
	var text string
	reply, err := gm.observe(ctx, chatID, func(g *engine.Game) {
		text = g.Status(caller)
	})
	if err != nil {
		return nil, err
	}
	reply.Narration = reply.Narration.Merge(engine.Narration{Text: text})
	return reply, nil
}

// Position returns where a user stands, engine.OffBoard for non-players
func (gm *GameManager) Position(ctx context.Context, chatID, userID int64) (int, error) {
	position := engine.OffBoard
	_, err := gm.observe(ctx, chatID, func(g *engine.Game) {
		position = g.Position(userID)
	})
	return position, err
}

// State returns the stored record of a chat's match
func (gm *GameManager) State(ctx context.Context, chatID int64) (models.GameRecord, error) {
	var rec models.GameRecord
	_, err := gm.observe(ctx, chatID, func(g *engine.Game) {
		rec = g.Serialize()
		rec.ChatID = chatID
	})
	return rec, err
}

// act loads the match, runs one engine command and persists the result.
// Silent no-ops are neither saved nor published.
func (gm *GameManager) act(ctx context.Context, chatID, caller int64, command func(*engine.Game) (engine.Narration, interface{})) (*Reply, error) {
	unlock := gm.lock(chatID)
	defer unlock()

	g, settlement, err := gm.load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	out, result := command(g)
	if settlement != nil || !out.Empty() {
		if err := gm.save(ctx, chatID, g); err != nil {
			return nil, err
		}
	}

	reply := &Reply{Narration: out, Settlement: settlement, Result: result}
	if settlement != nil {
		gm.publish(ctx, chatID, settlement.WinnerID, models.EventSettlement, settlement.Narration())
	}
	gm.publish(ctx, chatID, caller, models.EventNarration, out)
	return reply, nil
}

// observe loads the match for a read-only query. A settlement triggered by
// loading is still persisted and published.
func (gm *GameManager) observe(ctx context.Context, chatID int64, query func(*engine.Game)) (*Reply, error) {
	unlock := gm.lock(chatID)
	defer unlock()

	g, settlement, err := gm.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	reply := &Reply{Settlement: settlement}
	if settlement != nil {
		if err := gm.save(ctx, chatID, g); err != nil {
			return nil, err
		}
		gm.publish(ctx, chatID, settlement.WinnerID, models.EventSettlement, settlement.Narration())
	}
	query(g)
	return reply, nil
}

// loadRecord reads the hot copy, falling back to the archive
func (gm *GameManager) loadRecord(ctx context.Context, chatID int64) (models.GameRecord, error) {
	rec, err := gm.store.LoadGame(ctx, chatID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return rec, err
	}
	if gm.archive == nil {
		return rec, ErrNoGame
	}

	rec, err = gm.archive.FindMatch(ctx, chatID)
	if errors.Is(err, models.ErrNotFound) {
		return rec, ErrNoGame
	}
	if err != nil {
		return rec, err
	}
	gm.logger.Infow("Restored game from archive", "chatID", chatID)
	return rec, nil
}

func (gm *GameManager) load(ctx context.Context, chatID int64) (*engine.Game, *engine.Settlement, error) {
	rec, err := gm.loadRecord(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	g, settlement, err := engine.Deserialize(rec, gm.opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restore game for chat %d: %w", chatID, err)
	}
	if settlement != nil {
		gm.logger.Infow("Auction settled", "chatID", chatID, "winner", settlement.WinnerID,
			"tile", settlement.Tile, "bid", settlement.Bid, "charged", settlement.Charged)
	}
	return g, settlement, nil
}

func (gm *GameManager) save(ctx context.Context, chatID int64, g *engine.Game) error {
	rec := g.Serialize()
	rec.ChatID = chatID
	rec.UpdatedAt = gm.now().UTC()

	if err := gm.store.SaveGame(ctx, chatID, rec); err != nil {
		return err
	}

	var err error
	if g.Phase() == engine.StatusAuction {
		err = gm.store.TrackAuction(ctx, chatID)
	} else {
		err = gm.store.UntrackAuction(ctx, chatID)
	}
	if err != nil {
		gm.logger.Warnw("Failed to update auction tracking", "chatID", chatID, "error", err)
	}

	if gm.archive != nil {
		if err := gm.archive.SaveMatch(ctx, chatID, rec); err != nil {
			gm.logger.Warnw("Failed to archive game", "chatID", chatID, "error", err)
		}
	}
	return nil
}

// publish queues the text for the chat and the warning for the logs and
// any host listening for warnings
func (gm *GameManager) publish(ctx context.Context, chatID, caller int64, kind models.EventKind, out engine.Narration) {
	if out.Warning != "" {
		gm.logger.Warnw("Unsupported rule", "chatID", chatID, "warning", out.Warning)
	}
	if gm.publisher == nil {
		return
	}

	events := make([]models.ChatEvent, 0, 2)
	if out.Text != "" {
		events = append(events, models.ChatEvent{ChatID: chatID, Kind: kind, Text: out.Text, CallerID: caller})
	}
	if out.Warning != "" {
		events = append(events, models.ChatEvent{ChatID: chatID, Kind: models.EventWarning, Text: out.Warning, CallerID: caller})
	}
	for _, ev := range events {
		ev.Timestamp = gm.now().UTC()
		if err := gm.publisher.Publish(ctx, ev); err != nil {
			gm.logger.Errorw("Failed to publish event", "chatID", chatID, "kind", ev.Kind, "error", err)
		}
	}
}
