// Package shoe implements the Shoe State Machine (§4.1): Hi-Lo running
// count, true count, cards-dealt and penetration bookkeeping, plus an
// auto-mode virtual shoe that actually holds and deals an ordered deck.
package shoe

import (
	"fmt"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
)

const cardsPerDeck = 52

// minDecksRemainingDivisor floors decks_remaining before it is used as a
// true-count divisor, so the count does not blow up near the end of a shoe.
const minDecksRemainingDivisor = 0.5

// Shoe tracks the counting state of a multi-deck shoe. It does not itself
// hold any cards — it only knows how many have been dealt and what they were
// worth to the count. VirtualShoe composes a Shoe with an actual deck for
// auto-mode dealing.
type Shoe struct {
	numDecks     int
	runningCount int
	cardsDealt   int
}

// New constructs a freshly shuffled (zeroed) Shoe for numDecks decks.
func New(numDecks int) *Shoe {
	return &Shoe{numDecks: numDecks}
}

func (s *Shoe) NumDecks() int { return s.numDecks }

func (s *Shoe) totalCards() int { return s.numDecks * cardsPerDeck }

// Observe folds one more seen card into the running count. It fails with
// ErrShoeExhausted if the shoe was already fully dealt before this
// observation; it does not randomise or draw anything.
func (s *Shoe) Observe(c domain.Card) error {
	if s.cardsDealt >= s.totalCards() {
		return fmt.Errorf("%w: shoe already dealt all %d cards", apierr.ErrShoeExhausted, s.totalCards())
	}
	s.runningCount += c.Rank.HiLoTag()
	s.cardsDealt++
	return nil
}

// Shuffle resets the counting state to a fresh shoe. Idempotent.
func (s *Shoe) Shuffle() {
	s.runningCount = 0
	s.cardsDealt = 0
}

// Snapshot computes the point-in-time count view.
func (s *Shoe) Snapshot() domain.CountSnapshot {
	decksRemaining := float64(s.totalCards()-s.cardsDealt) / cardsPerDeck
	divisor := decksRemaining
	if divisor < minDecksRemainingDivisor {
		divisor = minDecksRemainingDivisor
	}
	return domain.CountSnapshot{
		RunningCount:   s.runningCount,
		TrueCount:      float64(s.runningCount) / divisor,
		DecksRemaining: decksRemaining,
		Penetration:    float64(s.cardsDealt) / float64(s.totalCards()),
		CardsDealt:     s.cardsDealt,
	}
}

// VirtualShoe composes a Shoe's counting state with an actual ordered,
// shuffled deck and a draw cursor, for auto-mode sessions that deal their
// own cards rather than receiving external observations.
type VirtualShoe struct {
	*Shoe
	shuffler Shuffler
	cards    []domain.Card
	cursor   int
}

// NewVirtualShoe builds a virtual shoe of numDecks decks, shuffled with
// shuffler.
func NewVirtualShoe(numDecks int, shuffler Shuffler) *VirtualShoe {
	vs := &VirtualShoe{Shoe: New(numDecks), shuffler: shuffler}
	vs.reload()
	return vs
}

func (vs *VirtualShoe) reload() {
	vs.cards = domain.StandardShoeCards(vs.numDecks)
	vs.shuffler.Shuffle(vs.cards)
	vs.cursor = 0
}

// Shuffle resets both the counting state and the physical deck, drawing a
// fresh shuffle from the configured Shuffler.
func (vs *VirtualShoe) Shuffle() {
	vs.Shoe.Shuffle()
	vs.reload()
}

func (vs *VirtualShoe) CardsRemaining() int {
	return len(vs.cards) - vs.cursor
}

// Draw deals one card, observing it into the count immediately. Use
// DrawHidden/Reveal instead for cards (the dealer hole card) that must not
// affect the count until later.
func (vs *VirtualShoe) Draw() (domain.Card, error) {
	c, err := vs.take()
	if err != nil {
		return domain.Card{}, err
	}
	if err := vs.Observe(c); err != nil {
		vs.cursor--
		return domain.Card{}, err
	}
	return c, nil
}

// DrawHidden deals one card from the deck without observing it into the
// count. The caller must later call Reveal with the same card once it is
// exposed, or the count will permanently under-count that card.
func (vs *VirtualShoe) DrawHidden() (domain.Card, error) {
	return vs.take()
}

// Reveal folds a previously hidden card (drawn via DrawHidden) into the
// count.
func (vs *VirtualShoe) Reveal(c domain.Card) error {
	return vs.Observe(c)
}

func (vs *VirtualShoe) take() (domain.Card, error) {
	if vs.CardsRemaining() <= 0 {
		return domain.Card{}, fmt.Errorf("%w: virtual shoe deck is empty", apierr.ErrShoeExhausted)
	}
	c := vs.cards[vs.cursor]
	vs.cursor++
	return c, nil
}
