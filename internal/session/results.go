package session

import (
	"github.com/ironsheep/scan-workbench/internal/model"
)

// ResultLedger holds one output card per image, in first-result order.
//
// UpsertCard works at image granularity: the stored card is replaced
// wholesale. A caller adding a single region result must start from the
// current card (see Session.MergeRegionResult), otherwise results of sibling
// regions are lost.
type ResultLedger struct {
	cards []model.OutputCard
}

// NewResultLedger creates an empty ledger.
func NewResultLedger() *ResultLedger {
	return &ResultLedger{}
}

// UpsertCard replaces the card with the same ImageID, or appends it.
func (l *ResultLedger) UpsertCard(card model.OutputCard) {
	card = card.Clone()
	for i := range l.cards {
		if l.cards[i].ImageID == card.ImageID {
			l.cards[i] = card
			return
		}
	}
	l.cards = append(l.cards, card)
}

// Card returns a copy of the image's card.
func (l *ResultLedger) Card(imageID string) (model.OutputCard, bool) {
	for i := range l.cards {
		if l.cards[i].ImageID == imageID {
			return l.cards[i].Clone(), true
		}
	}
	return model.OutputCard{}, false
}

// Cards returns a snapshot of every card.
func (l *ResultLedger) Cards() []model.OutputCard {
	out := make([]model.OutputCard, len(l.cards))
	for i := range l.cards {
		out[i] = l.cards[i].Clone()
	}
	return out
}

// Len returns the number of cards.
func (l *ResultLedger) Len() int {
	return len(l.cards)
}

// Clear drops every card.
func (l *ResultLedger) Clear() {
	l.cards = nil
}
