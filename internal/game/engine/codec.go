package engine

import (
	"errors"
	"fmt"

	"github.com/kekopoly/monopoly/internal/game/board"
	"github.com/kekopoly/monopoly/internal/game/models"
)

var (
	ErrUnknownStatus = errors.New("unknown game status")
	ErrCorruptRecord = errors.New("corrupt game record")
	ErrUnknownBidder = errors.New("bidder is not a participant")
)

// Status tags as they are persisted
const (
	tagRoll    = "roll"
	tagBuy     = "buy"
	tagAuction = "auction"
)

func (s Status) String() string {
	switch s {
	case StatusRoll:
		return tagRoll
	case StatusBuy:
		return tagBuy
	case StatusAuction:
		return tagAuction
	}
	return "unknown"
}

// ParseStatus converts a persisted tag back into a Status
func ParseStatus(tag string) (Status, error) {
	switch tag {
	case tagRoll:
		return StatusRoll, nil
	case tagBuy:
		return StatusBuy, nil
	case tagAuction:
		return StatusAuction, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, tag)
}

// Settlement describes an auction resolved while loading a record. Charged
// is the tile's book cost, which is what the winner pays regardless of Bid.
type Settlement struct {
	WinnerID int64  `json:"winnerId"`
	Winner   string `json:"winner"`
	Money    int    `json:"money"`
	Tile     int    `json:"tileId"`
	Bid      int    `json:"bid"`
	Charged  int    `json:"charged"`
}

// Narration renders the settlement for the chat
func (s Settlement) Narration() Narration {
	out := say("Auction closed. %s won %s and now has %d.", s.Winner, board.At(s.Tile).Name, s.Money)
	if s.Bid != s.Charged {
		out = out.Merge(warn("auction settled at book cost %d, winning bid was %d", s.Charged, s.Bid))
	}
	return out
}

// Serialize flattens the game into a host-storable record
func (g *Game) Serialize() models.GameRecord {
	players := make([]models.PlayerRecord, len(g.players))
	for i, p := range g.players {
		players[i] = p.record()
	}
	return models.GameRecord{
		CurrentPlayer: g.current,
		Status:        g.status.String(),
		Players:       players,
		BiggestBid:    g.biggestBid,
		BidTimeSec:    g.bidTime,
		BidderID:      g.bidderID,
	}
}

// Deserialize rebuilds a game from its record. An auction whose window has
// elapsed is settled here and reported; this is the only place auctions
// expire, so hosts must load open auctions periodically.
func Deserialize(rec models.GameRecord, opts ...Option) (*Game, *Settlement, error) {
	status, err := ParseStatus(rec.Status)
	if err != nil {
		return nil, nil, err
	}
	if len(rec.Players) == 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptRecord, ErrEmptyRoster)
	}
	if rec.CurrentPlayer < 0 || rec.CurrentPlayer >= len(rec.Players) {
		return nil, nil, fmt.Errorf("%w: current player %d out of %d", ErrCorruptRecord, rec.CurrentPlayer, len(rec.Players))
	}

	g := newGame(opts)
	g.current = rec.CurrentPlayer
	g.status = status
	g.biggestBid = rec.BiggestBid
	g.bidTime = rec.BidTimeSec
	g.bidderID = rec.BidderID

	seen := make(map[int64]bool, len(rec.Players))
	for idx, pr := range rec.Players {
		if seen[pr.UserID] {
			return nil, nil, fmt.Errorf("%w: %d", ErrDuplicatePlayer, pr.UserID)
		}
		seen[pr.UserID] = true
		if !board.Valid(pr.Position) {
			return nil, nil, fmt.Errorf("%w: player %d at %d", ErrCorruptRecord, pr.UserID, pr.Position)
		}

		p := playerFromRecord(pr)
		for tile, houses := range p.ownership {
			if !board.Valid(tile) || !board.At(tile).Ownable() {
				return nil, nil, fmt.Errorf("%w: player %d owns tile %d", ErrCorruptRecord, pr.UserID, tile)
			}
			if houses < 0 || houses > 5 {
				return nil, nil, fmt.Errorf("%w: %d houses on tile %d", ErrCorruptRecord, houses, tile)
			}
			if g.owners[tile] != unowned {
				return nil, nil, fmt.Errorf("%w: tile %d has two owners", ErrCorruptRecord, tile)
			}
			g.owners[tile] = idx
		}
		g.players = append(g.players, p)
	}

	if status != StatusAuction {
		return g, nil, nil
	}
	winner := g.indexOf(g.bidderID)
	if winner < 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownBidder, g.bidderID)
	}
	if g.now()-g.bidTime <= int64(AuctionWindow.Seconds()) {
		return g, nil, nil
	}

	settlement, err := g.settle(winner)
	if err != nil {
		return nil, nil, err
	}
	return g, settlement, nil
}

// settle hands the auctioned tile to the winner at book cost and ends the
// auctioned player's turn
func (g *Game) settle(winner int) (*Settlement, error) {
	tile := g.players[g.current].position
	t := board.At(tile)
	if !t.Ownable() || g.owners[tile] != unowned {
		return nil, fmt.Errorf("%w: auction on tile %d", ErrCorruptRecord, tile)
	}

	p := g.players[winner]
	cost := t.Property.Cost()
	p.money -= cost
	g.acquire(winner, tile)
	g.status = StatusRoll
	g.endTurn()

	g.logger.Debugw("auction settled", "tile", tile, "winner", p.userID, "bid", g.biggestBid, "charged", cost)
	return &Settlement{
		WinnerID: p.userID,
		Winner:   p.name(),
		Money:    p.money,
		Tile:     tile,
		Bid:      g.biggestBid,
		Charged:  cost,
	}, nil
}
