package engine

import (
	"strconv"

	"github.com/kekopoly/monopoly/internal/game/board"
	"github.com/kekopoly/monopoly/internal/game/models"
)

type player struct {
	userID    int64
	username  string
	ownership map[int]int // tile id -> house count, 5 is a hotel
	position  int
	money     int
	jailed    bool
	streak    int
}

func newPlayer(seat models.Seat) *player {
	return &player{
		userID:    seat.UserID,
		username:  seat.Username,
		ownership: make(map[int]int),
		position:  board.GoPosition,
		money:     StartingMoney,
	}
}

// name falls back to the user id for players without a username
func (p *player) name() string {
	if p.username != "" {
		return p.username
	}
	return strconv.FormatInt(p.userID, 10)
}

func (p *player) owns(tile int) bool {
	_, ok := p.ownership[tile]
	return ok
}

// count returns how many of the given tiles the player owns
func (p *player) count(tiles []int) int {
	n := 0
	for _, id := range tiles {
		if p.owns(id) {
			n++
		}
	}
	return n
}

func (p *player) ownsAll(tiles []int) bool {
	return p.count(tiles) == len(tiles)
}

func (p *player) goToJail() {
	p.streak = 0
	p.jailed = true
	p.position = board.JailPosition
}

func (p *player) record() models.PlayerRecord {
	ownership := make(map[int]int, len(p.ownership))
	for tile, houses := range p.ownership {
		ownership[tile] = houses
	}
	return models.PlayerRecord{
		UserID:    p.userID,
		Username:  p.username,
		Ownership: ownership,
		Position:  p.position,
		Money:     p.money,
		IsJailed:  p.jailed,
		Streak:    p.streak,
	}
}

func playerFromRecord(rec models.PlayerRecord) *player {
	ownership := make(map[int]int, len(rec.Ownership))
	for tile, houses := range rec.Ownership {
		ownership[tile] = houses
	}
	return &player{
		userID:    rec.UserID,
		username:  rec.Username,
		ownership: ownership,
		position:  rec.Position,
		money:     rec.Money,
		jailed:    rec.IsJailed,
		streak:    rec.Streak,
	}
}
