package rules

import (
	"testing"

	"github.com/edgecount/blackjack-engine/internal/domain"
)

func mustTable(t *testing.T) *StrategyTable {
	t.Helper()
	table, err := LoadStrategyTable()
	if err != nil {
		t.Fatalf("LoadStrategyTable() returned error: %v", err)
	}
	return table
}

func card(rank domain.Rank, suit domain.Suit) domain.Card {
	return domain.NewCard(rank, suit)
}

// TestDecide_BasicStrategyNoCountInfluence is scenario 1: hard 16 vs 7 at
// true count 0 hits under plain basic strategy.
func TestDecide_BasicStrategyNoCountInfluence(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankTen, domain.SuitHearts), card(domain.RankSix, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: 0}

	action, err := Decide(hand, domain.RankSeven, count, rules, table, InitialTwoCardContext(hand, rules))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != domain.ActionHit {
		t.Errorf("got %s, want HIT", action)
	}
}

// TestDecide_IllustriousEighteenFires is scenario 2: hard 16 vs T at true
// count >= 0 stands instead of the baseline hit.
func TestDecide_IllustriousEighteenFires(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankTen, domain.SuitHearts), card(domain.RankSix, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: 0}

	action, err := Decide(hand, domain.RankTen, count, rules, table, InitialTwoCardContext(hand, rules))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != domain.ActionStand {
		t.Errorf("got %s, want STAND", action)
	}
}

// TestDecide_FabFourSurrender is scenario 3: hard 15 vs T at true count 0
// surrenders when surrender is allowed.
func TestDecide_FabFourSurrender(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankNine, domain.SuitClubs), card(domain.RankSix, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	rules.SurrenderAllowed = true
	count := domain.CountSnapshot{TrueCount: 0}

	action, err := Decide(hand, domain.RankTen, count, rules, table, InitialTwoCardContext(hand, rules))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != domain.ActionSurrender {
		t.Errorf("got %s, want SURRENDER", action)
	}
}

// TestDecide_FabFourFallsBackWhenDisallowed is scenario 4: the identical hand
// and count fall back to the baseline HIT when surrender is not offered.
func TestDecide_FabFourFallsBackWhenDisallowed(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankNine, domain.SuitClubs), card(domain.RankSix, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	rules.SurrenderAllowed = false
	count := domain.CountSnapshot{TrueCount: 0}

	action, err := Decide(hand, domain.RankTen, count, rules, table, InitialTwoCardContext(hand, rules))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != domain.ActionHit {
		t.Errorf("got %s, want HIT", action)
	}
}

func TestDecide_DoubleFallsBackToHitWhenIllegal(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankSix, domain.SuitClubs), card(domain.RankFive, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: 0}

	ctx := DecisionContext{CanDouble: false, CanSplit: false, CanSurrender: false}
	action, err := Decide(hand, domain.RankFive, count, rules, table, ctx)
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != domain.ActionHit {
		t.Errorf("got %s, want HIT (double disallowed mid-hand)", action)
	}
}

func TestDecide_SplitFallsBackToHardBaselineWhenIllegal(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankEight, domain.SuitClubs), card(domain.RankEight, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: 0}

	ctx := DecisionContext{CanDouble: true, CanSplit: false, CanSurrender: false}
	action, err := Decide(hand, domain.RankTen, count, rules, table, ctx)
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	// The split-illegal fallback uses the hand's raw HARD/SOFT baseline entry,
	// not a re-run of the deviation list against the fallback category.
	if action != domain.ActionHit {
		t.Errorf("got %s, want HIT (hard-16 baseline, deviations are not re-applied to the fallback)", action)
	}
}

func TestDecide_InsuranceQuery(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()

	if ShouldTakeInsurance(domain.CountSnapshot{TrueCount: 2.9}, rules) {
		t.Error("expected no insurance recommendation below threshold")
	}
	if !ShouldTakeInsurance(domain.CountSnapshot{TrueCount: 3.0}, rules) {
		t.Error("expected insurance recommendation at threshold")
	}
}

func TestDecide_PureNoMutation(t *testing.T) {
	t.Parallel()
	table := mustTable(t)
	hand := domain.NewHand(card(domain.RankTen, domain.SuitHearts), card(domain.RankSix, domain.SuitDiamonds))
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: 2}
	ctx := InitialTwoCardContext(hand, rules)

	first, err := Decide(hand, domain.RankNine, count, rules, table, ctx)
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	second, err := Decide(hand, domain.RankNine, count, rules, table, ctx)
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if first != second {
		t.Errorf("repeated Decide calls diverged: %s vs %s", first, second)
	}
	if len(hand.Cards) != 2 {
		t.Errorf("Decide mutated the input hand: now has %d cards", len(hand.Cards))
	}
}
