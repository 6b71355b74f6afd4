// Package rules holds the immutable strategy and deviation tables (§4.5),
// the pure Decision Engine (§4.2) and the Bet-Sizing Engine (§4.3). Nothing
// here mutates its inputs or consults a clock; the same inputs always
// produce the same outputs.
package rules

import (
	"fmt"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
)

// entryKey is the flattened (category, dealer-up) lookup key for the
// baseline table. HandCategory itself is not comparable-map-safe across
// every field combination we care about (PairRank is only meaningful for
// CategoryPair), so entryKey normalises it.
type entryKey struct {
	kind     domain.HandCategoryKind
	total    int
	pairRank domain.Rank
	dealerUp int
}

func keyFor(category domain.HandCategory, dealerUp int) entryKey {
	return entryKey{kind: category.Kind, total: category.Total, pairRank: category.PairRank, dealerUp: dealerUp}
}

// StrategyTable is the immutable, shared basic-strategy lookup plus the
// ordered deviation list. Construct once with LoadStrategyTable and pass by
// (shared) reference to the Decision and Bet engines — never a package-level
// singleton (§9 design notes).
type StrategyTable struct {
	baseline   map[entryKey]domain.Action
	deviations []Deviation
}

// dealerUpValues is every distinct dealer up-card key the table must cover:
// 2..10 and 11 (ace).
var dealerUpValues = []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

func allPairRanks() []domain.Rank {
	return []domain.Rank{
		domain.RankTwo, domain.RankThree, domain.RankFour, domain.RankFive, domain.RankSix,
		domain.RankSeven, domain.RankEight, domain.RankNine, domain.RankTen, domain.RankJack,
		domain.RankQueen, domain.RankKing, domain.RankAce,
	}
}

// LoadStrategyTable builds and validates the canonical 6-8 deck, S17-baseline
// basic strategy chart plus the Illustrious 18 + Fab 4 deviation set. The
// loader verifies full (category, dealer_up) coverage and that every
// deviation references a valid baseline key; an incomplete or inconsistent
// table fails with ErrBadRules rather than falling back silently (§4.5).
func LoadStrategyTable() (*StrategyTable, error) {
	t := &StrategyTable{baseline: make(map[entryKey]domain.Action)}
	t.loadHardTotals()
	t.loadSoftTotals()
	t.loadPairs()
	t.deviations = canonicalDeviations()

	if err := t.validateCoverage(); err != nil {
		return nil, err
	}
	if err := t.validateDeviationReferences(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *StrategyTable) set(category domain.HandCategory, dealerUp int, action domain.Action) {
	t.baseline[keyFor(category, dealerUp)] = action
}

func (t *StrategyTable) setRange(category domain.HandCategory, dealerUps []int, action domain.Action) {
	for _, du := range dealerUps {
		t.set(category, du, action)
	}
}

// setAllDealers fills every dealer-up key for category with action, then
// overrides the subset in exceptions.
func (t *StrategyTable) setAllDealers(category domain.HandCategory, action domain.Action, exceptions map[int]domain.Action) {
	for _, du := range dealerUpValues {
		if override, ok := exceptions[du]; ok {
			t.set(category, du, override)
			continue
		}
		t.set(category, du, action)
	}
}

func rng(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func (t *StrategyTable) loadHardTotals() {
	for total := 4; total <= 8; total++ {
		t.setAllDealers(domain.HardCategory(total), domain.ActionHit, nil)
	}
	t.setAllDealers(domain.HardCategory(9), domain.ActionHit, exceptionSet(rng(3, 6), domain.ActionDouble))
	t.setAllDealers(domain.HardCategory(10), domain.ActionHit, exceptionSet(rng(2, 9), domain.ActionDouble))
	t.setAllDealers(domain.HardCategory(11), domain.ActionHit, exceptionSet(rng(2, 10), domain.ActionDouble))
	t.setAllDealers(domain.HardCategory(12), domain.ActionHit, exceptionSet(rng(4, 6), domain.ActionStand))
	for total := 13; total <= 16; total++ {
		t.setAllDealers(domain.HardCategory(total), domain.ActionHit, exceptionSet(rng(2, 6), domain.ActionStand))
	}
	for total := 17; total <= 21; total++ {
		t.setAllDealers(domain.HardCategory(total), domain.ActionStand, nil)
	}
}

func (t *StrategyTable) loadSoftTotals() {
	t.setAllDealers(domain.SoftCategory(13), domain.ActionHit, exceptionSet(rng(5, 6), domain.ActionDouble))
	t.setAllDealers(domain.SoftCategory(14), domain.ActionHit, exceptionSet(rng(5, 6), domain.ActionDouble))
	t.setAllDealers(domain.SoftCategory(15), domain.ActionHit, exceptionSet(rng(4, 6), domain.ActionDouble))
	t.setAllDealers(domain.SoftCategory(16), domain.ActionHit, exceptionSet(rng(4, 6), domain.ActionDouble))
	t.setAllDealers(domain.SoftCategory(17), domain.ActionHit, exceptionSet(rng(3, 6), domain.ActionDouble))

	soft18 := map[int]domain.Action{2: domain.ActionStand, 7: domain.ActionStand, 8: domain.ActionStand}
	for _, du := range rng(3, 6) {
		soft18[du] = domain.ActionDouble
	}
	t.setAllDealers(domain.SoftCategory(18), domain.ActionHit, soft18)

	t.setAllDealers(domain.SoftCategory(19), domain.ActionStand, exceptionSet([]int{6}, domain.ActionDouble))
	t.setAllDealers(domain.SoftCategory(20), domain.ActionStand, nil)
	t.setAllDealers(domain.SoftCategory(21), domain.ActionStand, nil)
}

func (t *StrategyTable) loadPairs() {
	t.setAllDealers(domain.PairCategory(domain.RankAce), domain.ActionSplit, nil)

	tenPairSplit := map[int]domain.Action{} // never split tens: stand (hard 20) for every dealer up
	for _, rank := range []domain.Rank{domain.RankTen, domain.RankJack, domain.RankQueen, domain.RankKing} {
		t.setAllDealers(domain.PairCategory(rank), domain.ActionStand, tenPairSplit)
	}

	nines := exceptionSet(append(rng(2, 6), 8, 9), domain.ActionSplit)
	t.setAllDealers(domain.PairCategory(domain.RankNine), domain.ActionStand, nines) // 7, 10, A stand

	t.setAllDealers(domain.PairCategory(domain.RankEight), domain.ActionSplit, nil)
	t.setAllDealers(domain.PairCategory(domain.RankSeven), domain.ActionHit, exceptionSet(rng(2, 7), domain.ActionSplit))
	t.setAllDealers(domain.PairCategory(domain.RankSix), domain.ActionHit, exceptionSet(rng(2, 6), domain.ActionSplit))

	// Pair of 5s is never split: it behaves exactly like HARD(10).
	t.setAllDealers(domain.PairCategory(domain.RankFive), domain.ActionHit, exceptionSet(rng(2, 9), domain.ActionDouble))

	t.setAllDealers(domain.PairCategory(domain.RankFour), domain.ActionHit, exceptionSet([]int{5, 6}, domain.ActionSplit))
	t.setAllDealers(domain.PairCategory(domain.RankThree), domain.ActionHit, exceptionSet(rng(2, 7), domain.ActionSplit))
	t.setAllDealers(domain.PairCategory(domain.RankTwo), domain.ActionHit, exceptionSet(rng(2, 7), domain.ActionSplit))
}

func exceptionSet(dealerUps []int, action domain.Action) map[int]domain.Action {
	out := make(map[int]domain.Action, len(dealerUps))
	for _, du := range dealerUps {
		out[du] = action
	}
	return out
}

func (t *StrategyTable) validateCoverage() error {
	for total := 4; total <= 21; total++ {
		for _, du := range dealerUpValues {
			if _, ok := t.baseline[keyFor(domain.HardCategory(total), du)]; !ok {
				return fmt.Errorf("%w: missing baseline entry for HARD(%d) vs %d", apierr.ErrBadRules, total, du)
			}
		}
	}
	for total := 13; total <= 21; total++ {
		for _, du := range dealerUpValues {
			if _, ok := t.baseline[keyFor(domain.SoftCategory(total), du)]; !ok {
				return fmt.Errorf("%w: missing baseline entry for SOFT(%d) vs %d", apierr.ErrBadRules, total, du)
			}
		}
	}
	for _, rank := range allPairRanks() {
		for _, du := range dealerUpValues {
			if _, ok := t.baseline[keyFor(domain.PairCategory(rank), du)]; !ok {
				return fmt.Errorf("%w: missing baseline entry for PAIR(%s) vs %d", apierr.ErrBadRules, rank, du)
			}
		}
	}
	return nil
}

func (t *StrategyTable) validateDeviationReferences() error {
	for _, d := range t.deviations {
		if d.DealerUp < 2 || d.DealerUp > 11 {
			return fmt.Errorf("%w: deviation %q references invalid dealer_up %d", apierr.ErrBadRules, d.Label, d.DealerUp)
		}
		var key entryKey
		switch d.Category.Kind {
		case domain.CategoryHard:
			key = keyFor(domain.HardCategory(d.Category.Total), d.DealerUp)
		case domain.CategorySoft:
			key = keyFor(domain.SoftCategory(d.Category.Total), d.DealerUp)
		case domain.CategoryPair:
			key = keyFor(domain.PairCategory(d.Category.PairRank), d.DealerUp)
		}
		if _, ok := t.baseline[key]; !ok {
			return fmt.Errorf("%w: deviation %q references unknown baseline entry %s vs %d", apierr.ErrBadRules, d.Label, d.Category, d.DealerUp)
		}
	}
	return nil
}

// Baseline returns the table-B action for (category, dealer_up) without
// consulting deviations. Exposed mainly for tests and fallback paths.
func (t *StrategyTable) Baseline(category domain.HandCategory, dealerUp int) (domain.Action, bool) {
	action, ok := t.baseline[keyFor(category, dealerUp)]
	return action, ok
}
