// Package domain holds the value types shared by every layer of the engine:
// cards, hands, actions, outcomes and the table rules that parameterise them.
// Nothing in this package touches I/O, randomness or a clock.
package domain

import (
	"fmt"
	"strings"

	"github.com/edgecount/blackjack-engine/internal/apierr"
)

// Rank is a card rank. The four ten-valued ranks (TEN, JACK, QUEEN, KING) are
// distinct identities even though they share a blackjack value of 10 — a
// prior defect that conflated them mis-scored pair splits catastrophically,
// so this type never collapses them.
type Rank uint8

const (
	RankTwo Rank = iota + 2
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
	RankAce
)

// BlackjackValue returns the hard point value of the rank (ace counts as 11
// here; Hand resolves the 1/11 duality).
func (r Rank) BlackjackValue() int {
	switch r {
	case RankJack, RankQueen, RankKing:
		return 10
	case RankAce:
		return 11
	default:
		return int(r)
	}
}

// HiLoTag returns the Hi-Lo running-count contribution of the rank.
func (r Rank) HiLoTag() int {
	switch {
	case r >= RankTwo && r <= RankSix:
		return 1
	case r >= RankSeven && r <= RankNine:
		return 0
	default:
		return -1
	}
}

func (r Rank) String() string {
	switch r {
	case RankTen:
		return "T"
	case RankJack:
		return "J"
	case RankQueen:
		return "Q"
	case RankKing:
		return "K"
	case RankAce:
		return "A"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// ParseRank parses the single-character wire rank token.
func ParseRank(token string) (Rank, error) {
	switch strings.ToUpper(token) {
	case "2":
		return RankTwo, nil
	case "3":
		return RankThree, nil
	case "4":
		return RankFour, nil
	case "5":
		return RankFive, nil
	case "6":
		return RankSix, nil
	case "7":
		return RankSeven, nil
	case "8":
		return RankEight, nil
	case "9":
		return RankNine, nil
	case "T", "10":
		return RankTen, nil
	case "J":
		return RankJack, nil
	case "Q":
		return RankQueen, nil
	case "K":
		return RankKing, nil
	case "A":
		return RankAce, nil
	default:
		return 0, fmt.Errorf("%w: rank %q", apierr.ErrBadCard, token)
	}
}

// Suit is cosmetic: it is preserved for display but never consulted by
// counting or strategy.
type Suit uint8

const (
	SuitSpades Suit = iota
	SuitHearts
	SuitDiamonds
	SuitClubs
)

func (s Suit) String() string {
	switch s {
	case SuitSpades:
		return "s"
	case SuitHearts:
		return "h"
	case SuitDiamonds:
		return "d"
	case SuitClubs:
		return "c"
	default:
		return "?"
	}
}

// ParseSuit parses the single-character wire suit token, accepting the ASCII
// letter and the Unicode glyph as synonyms.
func ParseSuit(token string) (Suit, error) {
	switch token {
	case "s", "S", "♠":
		return SuitSpades, nil
	case "h", "H", "♥":
		return SuitHearts, nil
	case "d", "D", "♦":
		return SuitDiamonds, nil
	case "c", "C", "♣":
		return SuitClubs, nil
	default:
		return 0, fmt.Errorf("%w: suit %q", apierr.ErrBadCard, token)
	}
}

// Card is an observed playing card.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// ParseCard parses a two-character wire token "RS" (rank then suit).
func ParseCard(token string) (Card, error) {
	runes := []rune(token)
	if len(runes) != 2 {
		return Card{}, fmt.Errorf("%w: card token %q must be 2 characters", apierr.ErrBadCard, token)
	}
	rank, err := ParseRank(string(runes[0]))
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(string(runes[1]))
	if err != nil {
		return Card{}, err
	}
	return Card{Rank: rank, Suit: suit}, nil
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// StandardShoeCards returns numDecks concatenated 52-card decks in canonical
// (unshuffled) order.
func StandardShoeCards(numDecks int) []Card {
	suits := []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs}
	ranks := []Rank{RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven, RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing, RankAce}
	cards := make([]Card, 0, numDecks*52)
	for d := 0; d < numDecks; d++ {
		for _, suit := range suits {
			for _, rank := range ranks {
				cards = append(cards, NewCard(rank, suit))
			}
		}
	}
	return cards
}

// HandCategoryKind is the discriminant of the HandCategory sum type.
type HandCategoryKind uint8

const (
	CategoryHard HandCategoryKind = iota
	CategorySoft
	CategoryPair
)

// HandCategory identifies the strategy-table lookup key for a hand.
// HARD(total) | SOFT(total) | PAIR(rank) — never an ad hoc string key.
type HandCategory struct {
	Kind     HandCategoryKind
	Total    int  // meaningful for CategoryHard/CategorySoft
	PairRank Rank // meaningful for CategoryPair
}

func HardCategory(total int) HandCategory  { return HandCategory{Kind: CategoryHard, Total: total} }
func SoftCategory(total int) HandCategory  { return HandCategory{Kind: CategorySoft, Total: total} }
func PairCategory(rank Rank) HandCategory  { return HandCategory{Kind: CategoryPair, PairRank: rank} }

func (c HandCategory) String() string {
	switch c.Kind {
	case CategoryHard:
		return fmt.Sprintf("HARD(%d)", c.Total)
	case CategorySoft:
		return fmt.Sprintf("SOFT(%d)", c.Total)
	case CategoryPair:
		return fmt.Sprintf("PAIR(%s)", c.PairRank)
	default:
		return "UNKNOWN"
	}
}

// Hand is an ordered multiset of cards with the derived state the strategy
// and settlement layers consult.
type Hand struct {
	Cards []Card
}

func NewHand(cards ...Card) Hand {
	return Hand{Cards: append([]Card(nil), cards...)}
}

// Add returns a new Hand with card appended; Hand is treated as an immutable
// value everywhere in this package.
func (h Hand) Add(card Card) Hand {
	return Hand{Cards: append(append([]Card(nil), h.Cards...), card)}
}

// Total returns the best total (highest not exceeding 21, else the all-aces-
// as-1 sum) and whether an ace is still being scored as 11 in that total.
func (h Hand) Total() (total int, soft bool) {
	sum := 0
	aces := 0
	for _, c := range h.Cards {
		sum += c.Rank.BlackjackValue()
		if c.Rank == RankAce {
			aces++
		}
	}
	// Every ace above starts scored as 11; demote to 1 (subtract 10) while busted.
	for sum > 21 && aces > 0 {
		sum -= 10
		aces--
	}
	return sum, aces > 0
}

func (h Hand) IsSoft() bool {
	_, soft := h.Total()
	return soft
}

// IsPair is true iff the hand is exactly two cards of equal rank (not merely
// equal blackjack value — a king-ten is not a pair).
func (h Hand) IsPair() bool {
	return len(h.Cards) == 2 && h.Cards[0].Rank == h.Cards[1].Rank
}

func (h Hand) IsBlackjack() bool {
	total, _ := h.Total()
	return len(h.Cards) == 2 && total == 21
}

func (h Hand) IsBust() bool {
	total, _ := h.Total()
	return total > 21
}

// Category classifies the hand for strategy-table lookup. Pair detection
// takes precedence at the call site (§4.2): a pair of tens is tested both as
// PAIR(TEN) for the split decision and as HARD(20) for the fallback baseline.
func (h Hand) Category() HandCategory {
	if h.IsPair() {
		return PairCategory(h.Cards[0].Rank)
	}
	total, soft := h.Total()
	if soft {
		return SoftCategory(total)
	}
	return HardCategory(total)
}

// HardOrSoftCategory returns the HARD(total) or SOFT(total) view of the hand
// even when the hand is a pair — used when a pair deviation/baseline does not
// apply and the caller must fall back to the ordinary total-based entry.
func (h Hand) HardOrSoftCategory() HandCategory {
	total, soft := h.Total()
	if soft {
		return SoftCategory(total)
	}
	return HardCategory(total)
}

// DealerUpValue collapses J/Q/K/T into 10; ACE remains distinct (11 is used
// as its table key so it never collides with a hard total of 11).
func DealerUpValue(rank Rank) int {
	if rank == RankAce {
		return 11
	}
	return rank.BlackjackValue()
}

// Action is a player decision.
type Action string

const (
	ActionStand     Action = "STAND"
	ActionHit       Action = "HIT"
	ActionDouble    Action = "DOUBLE"
	ActionSplit     Action = "SPLIT"
	ActionSurrender Action = "SURRENDER"
)

// ParseAction validates a wire-format action token against the known set.
func ParseAction(token string) (Action, error) {
	switch Action(token) {
	case ActionStand, ActionHit, ActionDouble, ActionSplit, ActionSurrender:
		return Action(token), nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", apierr.ErrBadInput, token)
	}
}

// Outcome is the resolution of a settled hand.
type Outcome string

const (
	OutcomeWin       Outcome = "WIN"
	OutcomeLoss      Outcome = "LOSS"
	OutcomePush      Outcome = "PUSH"
	OutcomeBust      Outcome = "BUST"
	OutcomeBlackjack Outcome = "BLACKJACK"
	OutcomeSurrender Outcome = "SURRENDER"
)

// CountSnapshot is the immutable, point-in-time view of the shoe's counting
// state.
type CountSnapshot struct {
	RunningCount   int     `json:"running_count"`
	TrueCount      float64 `json:"true_count"`
	DecksRemaining float64 `json:"decks_remaining"`
	Penetration    float64 `json:"penetration"`
	CardsDealt     int     `json:"cards_dealt"`
}

// GameRules is the immutable configuration recognised by §6 of the contract:
// both the physical table rules and the money-management knobs that gate
// betting and index play. Constructed once per session and shared by value.
type GameRules struct {
	NumDecks              int     `json:"num_decks"`
	DealerStandsSoft17    bool    `json:"dealer_stands_soft_17"`
	DoubleAfterSplit      bool    `json:"double_after_split"`
	SurrenderAllowed      bool    `json:"surrender_allowed"`
	BlackjackPayout       float64 `json:"blackjack_payout"`
	Penetration           float64 `json:"penetration"`
	MaxSplitHands         int     `json:"max_split_hands"`
	ResplitAces           bool    `json:"resplit_aces"`
	TableMin              uint32  `json:"table_min"`
	TableMax              uint32  `json:"table_max"`
	KellyFraction         float64 `json:"kelly_fraction"`
	DeviationThresholdMargin float64 `json:"deviation_threshold_margin"`
	MaxBettingPenetration float64 `json:"max_betting_penetration"`
	WongOutThreshold      float64 `json:"wong_out_threshold"`
	InsuranceThreshold    float64 `json:"insurance_threshold"`
}

// DefaultGameRules mirrors the documented §6 defaults exactly:
// 6/true/true/true/1.5/0.75/15/500/0.5/0.0/0.85/-1.0.
func DefaultGameRules() GameRules {
	return GameRules{
		NumDecks:                 6,
		DealerStandsSoft17:       true,
		DoubleAfterSplit:         true,
		SurrenderAllowed:         true,
		BlackjackPayout:          1.5,
		Penetration:              0.75,
		MaxSplitHands:            4,
		ResplitAces:              false,
		TableMin:                 15,
		TableMax:                 500,
		KellyFraction:            0.5,
		DeviationThresholdMargin: 0.0,
		MaxBettingPenetration:    0.85,
		WongOutThreshold:         -1.0,
		InsuranceThreshold:       3.0,
	}
}

var validDeckCounts = map[int]bool{1: true, 2: true, 4: true, 6: true, 8: true}

// Validate enforces the invariants §3 documents for GameRules. An
// incomplete/inconsistent rules object must fail loudly, never fall back
// silently.
func (g GameRules) Validate() error {
	if !validDeckCounts[g.NumDecks] {
		return fmt.Errorf("%w: num_decks must be one of {1,2,4,6,8}, got %d", apierr.ErrBadRules, g.NumDecks)
	}
	if g.BlackjackPayout <= 0 {
		return fmt.Errorf("%w: blackjack_payout must be positive, got %v", apierr.ErrBadRules, g.BlackjackPayout)
	}
	if g.Penetration <= 0 || g.Penetration >= 1 {
		return fmt.Errorf("%w: penetration must be in (0,1), got %v", apierr.ErrBadRules, g.Penetration)
	}
	if g.TableMin == 0 || g.TableMax < g.TableMin {
		return fmt.Errorf("%w: table_min/table_max invalid (%d/%d)", apierr.ErrBadRules, g.TableMin, g.TableMax)
	}
	if g.KellyFraction < 0 {
		return fmt.Errorf("%w: kelly_fraction must be >= 0, got %v", apierr.ErrBadRules, g.KellyFraction)
	}
	if g.DeviationThresholdMargin < 0 {
		return fmt.Errorf("%w: deviation_threshold_margin must be >= 0, got %v", apierr.ErrBadRules, g.DeviationThresholdMargin)
	}
	if g.MaxBettingPenetration <= 0 || g.MaxBettingPenetration > 1 {
		return fmt.Errorf("%w: max_betting_penetration must be in (0,1], got %v", apierr.ErrBadRules, g.MaxBettingPenetration)
	}
	if g.MaxSplitHands < 1 {
		return fmt.Errorf("%w: max_split_hands must be >= 1, got %d", apierr.ErrBadRules, g.MaxSplitHands)
	}
	return nil
}
