package engine

import "github.com/kekopoly/monopoly/internal/game/board"

// drawCard picks a card from deck and applies it to p. Effects that the
// rules engine does not support yet are reported in the warning channel
// and leave p untouched.
func (g *Game) drawCard(p *player, deck []board.Card) Narration {
	card := g.deck.Draw(deck)
	out := say("%s", card.Note)

	switch card.Effect {
	case board.EffectMoney:
		p.money += card.Amount

	case board.EffectPosition:
		if card.Amount < p.position {
			p.money += GoSalary
			out = out.Merge(say("Passed GO."))
		}
		p.position = card.Amount

	case board.EffectNearestStation:
		p.position = board.NearestStation(p.position)
		out = out.Merge(warn("rent on card move to %s is not supported", board.At(p.position).Name))

	case board.EffectNearestUtility:
		p.position = board.NearestUtility(p.position)
		out = out.Merge(warn("rent on card move to %s is not supported", board.At(p.position).Name))

	case board.EffectGoBack3:
		p.position = board.Back(p.position, 3)

	default:
		// get out of jail, go to jail, pay all, repairs, assession
		out = out.Merge(warn("card effect %s is not supported, %s unaffected", card.Effect, p.name()))
	}

	g.logger.Debugw("card drawn", "player", p.userID, "effect", card.Effect.String(), "position", p.position)
	return out
}
