package board

// Size is the number of tiles on the board
const Size = 40

// Fixed positions referenced by the rules
const (
	GoPosition   = 0
	JailPosition = 10
)

// Kind represents the type of a tile
type Kind int

const (
	KindGo Kind = iota
	KindStreet
	KindRailroad
	KindUtility
	KindChance
	KindChest
	KindTaxIncome
	KindTaxLuxury
	KindFree
	KindJailVisit
	KindGoToJail
)

func (k Kind) String() string {
	switch k {
	case KindGo:
		return "go"
	case KindStreet:
		return "street"
	case KindRailroad:
		return "railroad"
	case KindUtility:
		return "utility"
	case KindChance:
		return "chance"
	case KindChest:
		return "chest"
	case KindTaxIncome:
		return "tax_income"
	case KindTaxLuxury:
		return "tax_luxury"
	case KindFree:
		return "free"
	case KindJailVisit:
		return "jail_visit"
	case KindGoToJail:
		return "go_to_jail"
	}
	return "unknown"
}

// Property is implemented by every tile that can be bought
type Property interface {
	Cost() int
}

// Street is a buildable property with a rent ladder indexed by house count
type Street struct {
	Price  int
	Rents  [6]int
	Colour Colour
}

// Cost returns the book cost of the street
func (s Street) Cost() int { return s.Price }

// Rent returns the rent for the given number of houses (5 is a hotel)
func (s Street) Rent(houses int) int {
	if houses < 0 || houses >= len(s.Rents) {
		return 0
	}
	return s.Rents[houses]
}

// Railroad is a station; rent depends on how many stations the owner holds
type Railroad struct {
	Price int
}

// Cost returns the book cost of the station
func (r Railroad) Cost() int { return r.Price }

// Utility rent depends on a fresh dice roll and on how many utilities the owner holds
type Utility struct {
	Price int
}

// Cost returns the book cost of the utility
func (u Utility) Cost() int { return u.Price }

// Tile is a single square of the board. Property is nil for tiles that
// cannot be bought.
type Tile struct {
	Name     string
	Kind     Kind
	Property Property
}

// Ownable reports whether the tile can be bought
func (t Tile) Ownable() bool {
	return t.Property != nil
}

func street(name string, colour Colour, price int, rents ...int) Tile {
	var ladder [6]int
	copy(ladder[:], rents)
	return Tile{Name: name, Kind: KindStreet, Property: Street{Price: price, Rents: ladder, Colour: colour}}
}

func station(name string) Tile {
	return Tile{Name: name, Kind: KindRailroad, Property: Railroad{Price: 200}}
}

func utility(name string) Tile {
	return Tile{Name: name, Kind: KindUtility, Property: Utility{Price: 150}}
}

func plain(name string, kind Kind) Tile {
	return Tile{Name: name, Kind: kind}
}

// Tiles is the London board in play order
var Tiles = [Size]Tile{
	plain("GO", KindGo),
	street("Old Kent Road", Brown, 60, 2, 10, 30, 90, 160, 250),
	plain("Community Chest", KindChest),
	street("Whitechapel Road", Brown, 60, 4, 20, 60, 180, 320, 450),
	plain("Income Tax", KindTaxIncome),
	station("Kings Cross Station"),
	street("The Angel, Islington", LightBlue, 100, 6, 30, 90, 270, 400, 550),
	plain("Chance", KindChance),
	street("Euston Road", LightBlue, 100, 6, 30, 90, 270, 400, 550),
	street("Pentonville Road", LightBlue, 120, 8, 40, 100, 300, 450, 600),
	plain("Jail visiting", KindJailVisit),
	street("Pall Mall", Pink, 140, 10, 50, 150, 450, 625, 750),
	utility("Electric Company"),
	street("Whitehall", Pink, 140, 10, 50, 150, 450, 625, 750),
	street("Northumberland Avenue", Pink, 160, 12, 60, 180, 500, 700, 900),
	station("Marylebone Station"),
	street("Bow Street", Orange, 180, 14, 70, 200, 550, 750, 950),
	plain("Community Chest", KindChest),
	street("Marlborough Street", Orange, 180, 14, 70, 200, 550, 750, 950),
	street("Vine Street", Orange, 200, 16, 80, 220, 600, 800, 1000),
	plain("Free Parking", KindFree),
	street("Strand", Red, 220, 18, 90, 250, 700, 875, 1050),
	plain("Chance", KindChance),
	street("Fleet Street", Red, 220, 18, 90, 250, 700, 875, 1050),
	street("Trafalgar Square", Red, 220, 20, 100, 300, 750, 925, 1100),
	station("Fenchurch St Station"),
	street("Leicester Square", Yellow, 260, 22, 110, 330, 800, 975, 1150),
	street("Coventry Street", Yellow, 260, 22, 110, 330, 800, 975, 1150),
	utility("Water Works"),
	street("Piccadilly", Yellow, 280, 24, 120, 360, 850, 1025, 1200),
	plain("Go To Jail", KindGoToJail),
	street("Regent Street", Green, 300, 26, 130, 390, 900, 1100, 1275),
	street("Oxford Street", Green, 300, 26, 130, 390, 900, 1100, 1275),
	plain("Community Chest", KindChest),
	street("Bond Street", Green, 300, 28, 150, 450, 1000, 1200, 1400),
	station("Liverpool Street Station"),
	plain("Chance", KindChance),
	street("Park Lane", DarkBlue, 350, 35, 175, 500, 1100, 1300, 1500),
	plain("Super Tax", KindTaxLuxury),
	street("Mayfair", DarkBlue, 400, 50, 100, 600, 1400, 1700, 2000),
}

// Railroads and Utilities list the fixed positions of those tiles
var (
	Railroads = []int{5, 15, 25, 35}
	Utilities = []int{12, 28}
)

// At returns the tile at a board position. The position must be in [0, Size).
func At(position int) Tile {
	return Tiles[position]
}

// Valid reports whether position addresses a tile
func Valid(position int) bool {
	return position >= 0 && position < Size
}

// Advance moves forward by steps, wrapping around the board. It reports
// whether the raw sum reached or crossed GO.
func Advance(position, steps int) (int, bool) {
	raw := position + steps
	return raw % Size, raw >= Size
}

// Back moves backwards by steps, wrapping around the board
func Back(position, steps int) int {
	return ((position-steps)%Size + Size) % Size
}

// RailroadRent returns 25 doubled for every additional station owned.
// Owning no stations yields no rent.
func RailroadRent(owned int) int {
	if owned <= 0 {
		return 0
	}
	return 25 << (owned - 1)
}

// UtilityRent multiplies the dice total by 10 when both utilities are owned,
// otherwise by 4
func UtilityRent(diceTotal int, ownsBoth bool) int {
	if ownsBoth {
		return diceTotal * 10
	}
	return diceTotal * 4
}

// NearestStation returns the next station forward from position
func NearestStation(position int) int {
	switch {
	case position <= 4:
		return 5
	case position <= 14:
		return 15
	case position <= 24:
		return 25
	case position <= 35:
		return 35
	default:
		return 5
	}
}

// NearestUtility returns the next utility forward from position
func NearestUtility(position int) int {
	switch {
	case position <= 11:
		return 12
	case position <= 27:
		return 28
	default:
		return 12
	}
}
