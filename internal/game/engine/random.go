package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kekopoly/monopoly/internal/game/board"
)

// Dice rolls the two six-sided dice used for movement and utility rent
type Dice interface {
	Roll() (int, int)
}

// Deck picks one card from a fixed deck. Draws are with replacement.
type Deck interface {
	Draw(deck []board.Card) board.Card
}

// Random backs both Dice and Deck with one seeded generator. A single
// Random may be shared by games on different goroutines.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds from the wall clock when seed is zero
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Roll() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(6) + 1, r.rng.Intn(6) + 1
}

func (r *Random) Draw(deck []board.Card) board.Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	return deck[r.rng.Intn(len(deck))]
}
