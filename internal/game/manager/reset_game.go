package manager

import (
	"context"
	"fmt"

	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/models"
)

// Reset drops the chat's match, lobby and pending events. Matches have no ending rule
// (bankruptcy is not implemented), so this is how a chat starts over.
func (gm *GameManager) Reset(ctx context.Context, chatID, caller int64) (*Reply, error) {
	unlock := gm.lock(chatID)
	defer unlock()

	if err := gm.store.DeleteGame(ctx, chatID); err != nil {
		return nil, fmt.Errorf("failed to delete game: %w", err)
	}
	if err := gm.store.ClearReady(ctx, chatID); err != nil {
		return nil, fmt.Errorf("failed to clear lobby: %w", err)
	}
	if gm.archive != nil {
		if err := gm.archive.DeleteMatch(ctx, chatID); err != nil {
			return nil, fmt.Errorf("failed to delete archived game: %w", err)
		}
	}
	if cleaner, ok := gm.publisher.(OutboxCleaner); ok {
		if err := cleaner.Clear(ctx, chatID); err != nil {
			return nil, fmt.Errorf("failed to clear outbox: %w", err)
		}
	}

	gm.logger.Infof("Game in chat %d reset by user %d", chatID, caller)
	reply := &Reply{Narration: engine.Narration{Text: "The game has been reset. Use enter to join a new one."}}
	gm.publish(ctx, chatID, caller, models.EventReset, reply.Narration)
	return reply, nil
}
