package manager

import (
	"context"
	"errors"

	"github.com/kekopoly/monopoly/internal/game/engine"
)

// ObserveAuctions reloads every chat with an open auction. Loading is what
// settles an expired auction, so this has to run periodically. It returns
// how many auctions were settled.
func (gm *GameManager) ObserveAuctions(ctx context.Context) (int, error) {
	chats, err := gm.store.AuctionChats(ctx)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, chatID := range chats {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}

		done, err := gm.observeAuction(ctx, chatID)
		if err != nil {
			gm.logger.Errorw("Failed to observe auction", "chatID", chatID, "error", err)
			continue
		}
		if done {
			settled++
		}
	}
	return settled, nil
}

func (gm *GameManager) observeAuction(ctx context.Context, chatID int64) (bool, error) {
	var phase engine.Status
	reply, err := gm.observe(ctx, chatID, func(g *engine.Game) {
		phase = g.Phase()
	})
	if errors.Is(err, ErrNoGame) {
		return false, gm.store.UntrackAuction(ctx, chatID)
	}
	if err != nil {
		return false, err
	}
	if reply.Settlement == nil && phase != engine.StatusAuction {
		// stale marker
		return false, gm.store.UntrackAuction(ctx, chatID)
	}
	return reply.Settlement != nil, nil
}
