package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kekopoly/monopoly/internal/game/board"
)

func chanceIndex(t *testing.T, effect board.Effect) int {
	t.Helper()
	for i, card := range board.Chance {
		if card.Effect == effect {
			return i
		}
	}
	t.Fatalf("no chance card with effect %s", effect)
	return -1
}

// Every test starts at GO and rolls 3+4 onto the Chance tile at 7
func drawChance(t *testing.T, index int) (Narration, *RollResult, *Game) {
	t.Helper()
	g := load(t, twoPlayers(), dice([2]int{3, 4}), WithDeck(fixedDeck{index: index}))
	out, res := g.Roll(alice)
	require.NotNil(t, res)
	return out, res, g
}

func TestCardAdvanceToGo(t *testing.T) {
	out, res, _ := drawChance(t, 0)
	assert.Equal(t, 0, res.Position)
	assert.Equal(t, 1700, res.Money)
	assert.Contains(t, out.Text, board.Chance[0].Note)
	assert.Contains(t, out.Text, "Passed GO.")
}

func TestCardAdvanceForwardHasNoGoCredit(t *testing.T) {
	out, res, _ := drawChance(t, 1)
	assert.Equal(t, 24, res.Position)
	assert.Equal(t, 1500, res.Money)
	assert.NotContains(t, out.Text, "Passed GO.")
}

func TestCardMoney(t *testing.T) {
	_, res, _ := drawChance(t, chanceIndex(t, board.EffectMoney))
	assert.Equal(t, 7, res.Position)
	assert.Equal(t, 1550, res.Money)
}

func TestCardGoBack3(t *testing.T) {
	_, res, g := drawChance(t, chanceIndex(t, board.EffectGoBack3))
	assert.Equal(t, 4, res.Position)
	// card moves do not resolve the new tile
	assert.Equal(t, 1500, res.Money)
	assert.Equal(t, bob, g.CurrentPlayer())
}

func TestCardNearestStationWarnsAboutRent(t *testing.T) {
	out, res, _ := drawChance(t, chanceIndex(t, board.EffectNearestStation))
	assert.Equal(t, 15, res.Position)
	assert.Contains(t, out.Warning, "not supported")
}

func TestCardNearestUtility(t *testing.T) {
	out, res, _ := drawChance(t, chanceIndex(t, board.EffectNearestUtility))
	assert.Equal(t, 12, res.Position)
	assert.Contains(t, out.Warning, "Electric Company")
}

func TestUnsupportedCardsAreSurfaced(t *testing.T) {
	for _, effect := range []board.Effect{
		board.EffectGetOutOfJail,
		board.EffectGoToJail,
		board.EffectPayAll,
		board.EffectRepairs,
	} {
		out, res, _ := drawChance(t, chanceIndex(t, effect))
		assert.Equal(t, 7, res.Position, effect.String())
		assert.Equal(t, 1500, res.Money, effect.String())
		assert.False(t, res.Jailed, effect.String())
		assert.Contains(t, out.Warning, effect.String())
	}
}

func TestChestDeckIsUsedOnChestTiles(t *testing.T) {
	g := load(t, twoPlayers(), dice([2]int{1, 1}), WithDeck(fixedDeck{index: 1}))
	out, res := g.Roll(alice)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Position)
	assert.Equal(t, 1700, res.Money)
	assert.Contains(t, out.Text, board.Chest[1].Note)
}

func TestNarrationMerge(t *testing.T) {
	n := say("one").Merge(warn("careful")).Merge(say("two")).Merge(Narration{})
	assert.Equal(t, Narration{Text: "one\ntwo", Warning: "careful"}, n)
	assert.True(t, Narration{}.Empty())
	assert.False(t, n.Empty())
}
