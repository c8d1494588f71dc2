package board

// Effect tags what a card does to the player who drew it
type Effect int

const (
	EffectMoney Effect = iota
	EffectPosition
	EffectNearestStation
	EffectNearestUtility
	EffectGetOutOfJail
	EffectGoBack3
	EffectGoToJail
	EffectPayAll
	EffectRepairs
	EffectAssession
)

func (e Effect) String() string {
	switch e {
	case EffectMoney:
		return "money"
	case EffectPosition:
		return "position"
	case EffectNearestStation:
		return "nearest_station"
	case EffectNearestUtility:
		return "nearest_utility"
	case EffectGetOutOfJail:
		return "get_out_of_jail"
	case EffectGoBack3:
		return "go_back_3"
	case EffectGoToJail:
		return "go_to_jail"
	case EffectPayAll:
		return "pay_all"
	case EffectRepairs:
		return "repairs"
	case EffectAssession:
		return "assession"
	}
	return "unknown"
}

// Card is an immutable event card. Amount is the money delta for EffectMoney,
// the target tile for EffectPosition and the per-player amount for EffectPayAll.
type Card struct {
	Note   string
	Effect Effect
	Amount int
}

// DeckSize is the number of cards in each deck
const DeckSize = 16

// Chance is the orange deck
var Chance = [DeckSize]Card{
	{Note: "Advance to GO. Collect 200.", Effect: EffectPosition, Amount: 0},
	{Note: "Advance to Trafalgar Square. If you pass GO, collect 200.", Effect: EffectPosition, Amount: 24},
	{Note: "Advance to Mayfair.", Effect: EffectPosition, Amount: 39},
	{Note: "Advance to Pall Mall. If you pass GO, collect 200.", Effect: EffectPosition, Amount: 11},
	{Note: "Advance to the nearest station.", Effect: EffectNearestStation},
	{Note: "Advance to the nearest station.", Effect: EffectNearestStation},
	{Note: "Advance to the nearest utility.", Effect: EffectNearestUtility},
	{Note: "Bank pays you dividend of 50.", Effect: EffectMoney, Amount: 50},
	{Note: "Get out of jail free.", Effect: EffectGetOutOfJail},
	{Note: "Go back 3 spaces.", Effect: EffectGoBack3},
	{Note: "Go to jail. Do not pass GO, do not collect 200.", Effect: EffectGoToJail},
	{Note: "Make general repairs on all your property.", Effect: EffectRepairs},
	{Note: "Speeding fine 15.", Effect: EffectMoney, Amount: -15},
	{Note: "Take a trip to Kings Cross Station. If you pass GO, collect 200.", Effect: EffectPosition, Amount: 5},
	{Note: "You have been elected chairman of the board. Pay each player 50.", Effect: EffectPayAll, Amount: 50},
	{Note: "Your building loan matures. Collect 150.", Effect: EffectMoney, Amount: 150},
}

// Chest is the community chest deck
var Chest = [DeckSize]Card{
	{Note: "Advance to GO. Collect 200.", Effect: EffectPosition, Amount: 0},
	{Note: "Bank error in your favour. Collect 200.", Effect: EffectMoney, Amount: 200},
	{Note: "Doctor's fee. Pay 50.", Effect: EffectMoney, Amount: -50},
	{Note: "From sale of stock you get 50.", Effect: EffectMoney, Amount: 50},
	{Note: "Get out of jail free.", Effect: EffectGetOutOfJail},
	{Note: "Go to jail. Do not pass GO, do not collect 200.", Effect: EffectGoToJail},
	{Note: "Holiday fund matures. Receive 100.", Effect: EffectMoney, Amount: 100},
	{Note: "Income tax refund. Collect 20.", Effect: EffectMoney, Amount: 20},
	{Note: "It is your birthday. Collect 10 from every player.", Effect: EffectPayAll, Amount: -10},
	{Note: "Life insurance matures. Collect 100.", Effect: EffectMoney, Amount: 100},
	{Note: "Pay hospital fees of 100.", Effect: EffectMoney, Amount: -100},
	{Note: "Pay school fees of 50.", Effect: EffectMoney, Amount: -50},
	{Note: "Receive 25 consultancy fee.", Effect: EffectMoney, Amount: 25},
	{Note: "You are assessed for street repairs.", Effect: EffectAssession},
	{Note: "You have won second prize in a beauty contest. Collect 10.", Effect: EffectMoney, Amount: 10},
	{Note: "You inherit 100.", Effect: EffectMoney, Amount: 100},
}
