package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/game/board"
	"github.com/kekopoly/monopoly/internal/game/models"
)

// Economic constants of the rule set
const (
	StartingMoney = 1500
	GoSalary      = 200
	AuctionStake  = 40
	AuctionWindow = 10 * time.Second
	IncomeTax     = 200
	LuxuryTax     = 100
)

// OffBoard is returned by Position for users who are not in the match
const OffBoard = 101

const unowned = -1

var (
	ErrEmptyRoster     = errors.New("roster is empty")
	ErrDuplicatePlayer = errors.New("duplicate player in roster")
)

// Status is the action the game is waiting for
type Status int

const (
	StatusRoll Status = iota
	StatusBuy
	StatusAuction
)

// Game is a single match. It is not safe for concurrent use; the host
// serialises calls per match.
type Game struct {
	current    int
	players    []*player
	status     Status
	biggestBid int
	bidTime    int64
	bidderID   int64

	// owners maps a tile to the roster index of its owner. It is derived
	// from the players' ownership maps and kept in lockstep with them.
	owners [board.Size]int

	dice   Dice
	deck   Deck
	clock  clock.Clock
	logger *zap.SugaredLogger
}

// Option configures the capabilities of a Game
type Option func(*Game)

// WithDice replaces the dice
func WithDice(d Dice) Option {
	return func(g *Game) { g.dice = d }
}

// WithDeck replaces the card picker
func WithDeck(d Deck) Option {
	return func(g *Game) { g.deck = d }
}

// WithClock replaces the clock used for auction timing
func WithClock(c clock.Clock) Option {
	return func(g *Game) { g.clock = c }
}

// WithLogger sets the logger for state transitions
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(g *Game) { g.logger = logger }
}

// WithSeed makes dice and card draws reproducible
func WithSeed(seed int64) Option {
	return func(g *Game) {
		src := NewRandom(seed)
		g.dice = src
		g.deck = src
	}
}

func newGame(opts []Option) *Game {
	src := NewRandom(0)
	g := &Game{
		dice:   src,
		deck:   src,
		clock:  clock.New(),
		logger: zap.NewNop().Sugar(),
	}
	for i := range g.owners {
		g.owners[i] = unowned
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New starts a match with the given seats in turn order
func New(seats []models.Seat, opts ...Option) (*Game, error) {
	if len(seats) == 0 {
		return nil, ErrEmptyRoster
	}

	g := newGame(opts)
	seen := make(map[int64]bool, len(seats))
	for _, seat := range seats {
		if seen[seat.UserID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePlayer, seat.UserID)
		}
		seen[seat.UserID] = true
		g.players = append(g.players, newPlayer(seat))
	}

	g.logger.Debugw("game created", "players", len(g.players))
	return g, nil
}

// RollResult is the outcome of a successful roll
type RollResult struct {
	Position int  `json:"position"`
	Money    int  `json:"money"`
	Jailed   bool `json:"isJailed"`
	Streak   int  `json:"streak"`
	MustBuy  bool `json:"mustBuy"`
}

// Purchase is the outcome of a successful buy
type Purchase struct {
	Money int `json:"money"`
	Tile  int `json:"tileId"`
}

// BidReceipt is the outcome of an accepted auction start or bid. At is the
// unix second the sliding auction window starts from.
type BidReceipt struct {
	Amount   int   `json:"amount"`
	BidderID int64 `json:"bidderId"`
	At       int64 `json:"bidTimeSec"`
}

// Deadline is the first instant at which the auction may settle
func (r BidReceipt) Deadline() time.Time {
	return time.Unix(r.At, 0).Add(AuctionWindow + time.Second)
}

// RentReceipt is the outcome of a rent claim
type RentReceipt struct {
	CallerMoney int   `json:"callerMoney"`
	RenteeID    int64 `json:"renteeId"`
	RenteeMoney int   `json:"renteeMoney"`
	Amount      int   `json:"amount"`
}

// BuildReceipt is the outcome of a successful build
type BuildReceipt struct {
	Money  int `json:"money"`
	Houses int `json:"houses"`
}

// Phase returns what the game is waiting for
func (g *Game) Phase() Status {
	return g.status
}

// CurrentPlayer returns the user id whose turn it is
func (g *Game) CurrentPlayer() int64 {
	return g.players[g.current].userID
}

func (g *Game) indexOf(userID int64) int {
	for i, p := range g.players {
		if p.userID == userID {
			return i
		}
	}
	return -1
}

func (g *Game) ownerOf(tile int) *player {
	if idx := g.owners[tile]; idx != unowned {
		return g.players[idx]
	}
	return nil
}

// acquire records ownership in both the player's map and the reverse index
func (g *Game) acquire(idx, tile int) {
	g.players[idx].ownership[tile] = 0
	g.owners[tile] = idx
}

func (g *Game) endTurn() {
	g.current = (g.current + 1) % len(g.players)
}

func (g *Game) now() int64 {
	return g.clock.Now().Unix()
}

func (g *Game) rollResult(p *player) *RollResult {
	return &RollResult{
		Position: p.position,
		Money:    p.money,
		Jailed:   p.jailed,
		Streak:   p.streak,
		MustBuy:  g.status == StatusBuy,
	}
}

// Roll moves the current player. Calls out of phase or out of turn are
// silent no-ops.
func (g *Game) Roll(caller int64) (Narration, *RollResult) {
	if g.status != StatusRoll {
		return Narration{}, nil
	}
	mover := g.players[g.current]
	if mover.userID != caller {
		return Narration{}, nil
	}

	d1, d2 := g.dice.Roll()
	double := d1 == d2
	position, passedGo := board.Advance(mover.position, d1+d2)
	tile := board.At(position)

	out := say("%s has rolled %d and %d, now on %s.", mover.name(), d1, d2, tile.Name)
	if mover.jailed {
		out = out.Merge(warn("%s rolled while jailed, jail rules are not enforced", mover.name()))
	}
	if passedGo {
		mover.money += GoSalary
		out = out.Merge(say("Passed GO."))
	}
	mover.position = position

	if double && mover.streak >= 2 {
		out = out.Merge(say("Rolled double 3 times in a row, go to jail."))
		mover.goToJail()
		g.endTurn()
		g.logger.Debugw("jailed for doubles", "player", mover.userID)
		return out, g.rollResult(mover)
	}
	if double {
		mover.streak++
	} else {
		mover.streak = 0
	}

	if mover.owns(position) {
		if !double {
			g.endTurn()
		}
		return out, g.rollResult(mover)
	}

	switch tile.Kind {
	case board.KindStreet, board.KindRailroad, board.KindUtility:
		// an owned tile waits for its owner to claim rent
		if g.ownerOf(position) == nil {
			g.status = StatusBuy
			out = out.Merge(say("Buy for %d or start an auction.", tile.Property.Cost()))
		}
	case board.KindChance:
		out = out.Merge(g.drawCard(mover, board.Chance[:]))
	case board.KindChest:
		out = out.Merge(g.drawCard(mover, board.Chest[:]))
	case board.KindGoToJail:
		out = out.Merge(say("Go to jail."))
		mover.goToJail()
		g.endTurn()
		g.logger.Debugw("jailed by tile", "player", mover.userID)
		return out, g.rollResult(mover)
	case board.KindTaxIncome:
		mover.money -= IncomeTax
		out = out.Merge(say("Paid %d income tax.", IncomeTax))
	case board.KindTaxLuxury:
		mover.money -= LuxuryTax
		out = out.Merge(say("Paid %d super tax.", LuxuryTax))
	}

	if g.status == StatusRoll && !double {
		g.endTurn()
	}
	out = out.Merge(say("%d in the bank.", mover.money))

	g.logger.Debugw("rolled", "player", mover.userID, "dice", []int{d1, d2}, "position", mover.position, "status", g.status.String())
	return out, g.rollResult(mover)
}

// Buy purchases the tile the current player stands on at book cost
func (g *Game) Buy(caller int64) (Narration, *Purchase) {
	if g.status != StatusBuy {
		return Narration{}, nil
	}
	mover := g.players[g.current]
	if mover.userID != caller {
		return Narration{}, nil
	}

	if owner := g.ownerOf(mover.position); owner != nil {
		return say("This property is already owned by %s", owner.name()), nil
	}
	tile := board.At(mover.position)
	if !tile.Ownable() {
		return say("Non-purchasable tile"), nil
	}

	cost := tile.Property.Cost()
	if mover.money < cost {
		return say("Not enough money.\n%d in the bank. %s costs %d", mover.money, tile.Name, cost), nil
	}

	mover.money -= cost
	g.acquire(g.current, mover.position)
	g.status = StatusRoll
	// a double keeps the turn
	if mover.streak == 0 {
		g.endTurn()
	}

	g.logger.Debugw("tile bought", "player", mover.userID, "tile", mover.position, "cost", cost)
	return say("Purchased %s.\n%d in the bank.", tile.Name, mover.money), &Purchase{Money: mover.money, Tile: mover.position}
}

// Auction opens bidding on the current player's tile with the caller as the
// first bidder at the entry stake
func (g *Game) Auction(caller int64) (Narration, *BidReceipt) {
	if g.status != StatusBuy {
		return Narration{}, nil
	}
	mover := g.players[g.current]
	if mover.userID != caller {
		return Narration{}, nil
	}

	if owner := g.ownerOf(mover.position); owner != nil {
		return say("This property is already owned by %s", owner.name()), nil
	}
	if !board.At(mover.position).Ownable() {
		return say("Non-purchasable tile"), nil
	}
	if mover.money < AuctionStake {
		return say("You don't have enough money to start a bid."), nil
	}

	g.status = StatusAuction
	g.bidderID = caller
	g.biggestBid = AuctionStake
	g.bidTime = g.now()

	g.logger.Debugw("auction started", "tile", mover.position, "bidder", caller, "at", g.bidTime)
	out := say("Starting an auction. Starting bid is %d.\n%d seconds to make a bid", AuctionStake, int(AuctionWindow.Seconds()))
	return out, &BidReceipt{Amount: g.biggestBid, BidderID: g.bidderID, At: g.bidTime}
}

// Bid raises the auction. Any participant may bid; there is no funds check.
func (g *Game) Bid(caller int64, amount int) (Narration, *BidReceipt) {
	if g.status != StatusAuction || g.indexOf(caller) < 0 {
		return Narration{}, nil
	}
	if amount <= g.biggestBid {
		return say("Enter a bigger bid"), nil
	}

	g.biggestBid = amount
	g.bidderID = caller
	g.bidTime = g.now()

	g.logger.Debugw("bid accepted", "bidder", caller, "amount", amount, "at", g.bidTime)
	return say("Biggest bid %d", amount), &BidReceipt{Amount: amount, BidderID: caller, At: g.bidTime}
}

// Rent lets the owner of the current player's tile collect rent. Money
// moves unconditionally and may go negative.
func (g *Game) Rent(caller int64) (Narration, *RentReceipt) {
	rentee := g.players[g.current]
	if rentee.userID == caller {
		return say("Can't ask rent from yourself"), nil
	}
	idx := g.indexOf(caller)
	if idx < 0 {
		return Narration{}, nil
	}
	owner := g.players[idx]
	houses, ok := owner.ownership[rentee.position]
	if !ok {
		return Narration{}, nil
	}

	var out Narration
	var amount int
	switch prop := board.At(rentee.position).Property.(type) {
	case board.Street:
		amount = prop.Rent(houses)
	case board.Railroad:
		amount = board.RailroadRent(owner.count(board.Railroads))
	case board.Utility:
		d1, d2 := g.dice.Roll()
		amount = board.UtilityRent(d1+d2, owner.ownsAll(board.Utilities))
		out = say("%s rolled %d and %d.", owner.name(), d1, d2)
	default:
		return Narration{}, nil
	}

	owner.money += amount
	rentee.money -= amount

	g.logger.Debugw("rent collected", "owner", owner.userID, "rentee", rentee.userID, "amount", amount)
	out = out.Merge(say("%s collected %d rent from %s. %s now has %d, %s now has %d.",
		owner.name(), amount, rentee.name(), owner.name(), owner.money, rentee.name(), rentee.money))
	return out, &RentReceipt{
		CallerMoney: owner.money,
		RenteeID:    rentee.userID,
		RenteeMoney: rentee.money,
		Amount:      amount,
	}
}

// Build adds one house to a street the caller owns. The first house on a
// colour needs the whole colour group.
func (g *Game) Build(caller int64, tileID int) (Narration, *BuildReceipt) {
	idx := g.indexOf(caller)
	if idx < 0 || !board.Valid(tileID) {
		return Narration{}, nil
	}
	p := g.players[idx]
	tile := board.At(tileID)

	houses, ok := p.ownership[tileID]
	if !ok {
		return say("You don't own %s", tile.Name), nil
	}
	street, ok := tile.Property.(board.Street)
	if !ok {
		return say("Can't build houses on %s", tile.Name), nil
	}
	if houses >= 5 {
		return say("Can't build any more on %s", tile.Name), nil
	}
	group := street.Colour.Tiles()
	if houses == 0 && !p.ownsAll(group) {
		return say("You need to have colour monopoly to build."), nil
	}
	price := street.Colour.HousePrice()
	if p.money < price {
		return say("Not enough money. You have %d, building costs %d.", p.money, price), nil
	}

	p.money -= price
	houses++
	p.ownership[tileID] = houses

	var out Narration
	if houses == 5 {
		out = say("Built a hotel on %s. %d in the bank", tile.Name, p.money)
	} else {
		out = say("Built a house on %s, %d in total. %d in the bank", tile.Name, houses, p.money)
	}
	for _, id := range group {
		if diff := houses - p.ownership[id]; diff > 1 || diff < -1 {
			out = out.Merge(warn("uneven building on the %s group is not enforced", street.Colour))
			break
		}
	}

	g.logger.Debugw("built", "player", p.userID, "tile", tileID, "houses", houses, "price", price)
	return out, &BuildReceipt{Money: p.money, Houses: houses}
}

// Status narrates the phase of the game and lists the caller's holdings
func (g *Game) Status(caller int64) string {
	current := g.players[g.current]

	var phase string
	switch g.status {
	case StatusRoll:
		phase = fmt.Sprintf("Waiting for %s to roll the dice.", current.name())
	case StatusBuy:
		phase = fmt.Sprintf("Waiting for %s to buy or auction off a property.", current.name())
	case StatusAuction:
		phase = "Waiting for bid submissions."
	}

	idx := g.indexOf(caller)
	if idx < 0 || len(g.players[idx].ownership) == 0 {
		return phase
	}
	p := g.players[idx]

	tiles := make([]int, 0, len(p.ownership))
	for id := range p.ownership {
		tiles = append(tiles, id)
	}
	sort.Ints(tiles)

	var sb strings.Builder
	sb.WriteString(phase)
	fmt.Fprintf(&sb, "\n%s owns:", p.name())
	for _, id := range tiles {
		fmt.Fprintf(&sb, "\n%d. %s - %d house(s)", id, board.At(id).Name, p.ownership[id])
	}
	return sb.String()
}

// Position returns where a participant stands, or OffBoard for anybody else
func (g *Game) Position(userID int64) int {
	idx := g.indexOf(userID)
	if idx < 0 {
		return OffBoard
	}
	return g.players[idx].position
}
