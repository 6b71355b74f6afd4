package rules

import (
	"strings"
	"testing"

	"github.com/edgecount/blackjack-engine/internal/domain"
)

func TestRecommendedBet_NegativeAdvantageReturnsTableMin(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: -3, Penetration: 0.2}

	bet := RecommendedBet(count, 10000, rules)
	if bet != rules.TableMin {
		t.Errorf("got %d, want table_min %d", bet, rules.TableMin)
	}
}

// TestRecommendedBet_DefensiveCutoff is scenario 6: past max_betting_penetration
// the recommended bet is always table_min, regardless of how favorable the
// count looks.
func TestRecommendedBet_DefensiveCutoff(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()
	rules.NumDecks = 6
	rules.MaxBettingPenetration = 0.85

	cardsDealt := 266
	totalCards := rules.NumDecks * 52
	penetration := float64(cardsDealt) / float64(totalCards)
	if penetration <= rules.MaxBettingPenetration {
		t.Fatalf("test setup error: penetration %v is not past cutoff %v", penetration, rules.MaxBettingPenetration)
	}

	count := domain.CountSnapshot{TrueCount: 8, Penetration: penetration}
	bet := RecommendedBet(count, 10000, rules)
	if bet != rules.TableMin {
		t.Errorf("got %d, want table_min %d despite favorable count", bet, rules.TableMin)
	}
}

func TestRecommendedBet_ClampedToTableMax(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()
	rules.TableMax = 100

	count := domain.CountSnapshot{TrueCount: 20, Penetration: 0.1}
	bet := RecommendedBet(count, 1_000_000, rules)
	if bet != rules.TableMax {
		t.Errorf("got %d, want table_max %d", bet, rules.TableMax)
	}
}

func TestRecommendedBet_AlwaysWithinTableLimits(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()

	trueCounts := []float64{-10, -1, 0, 1, 2, 5, 10, 20}
	for _, tc := range trueCounts {
		count := domain.CountSnapshot{TrueCount: tc, Penetration: 0.3}
		bet := RecommendedBet(count, 50000, rules)
		if bet < rules.TableMin || bet > rules.TableMax {
			t.Errorf("true_count %v: bet %d out of [%d,%d]", tc, bet, rules.TableMin, rules.TableMax)
		}
	}
}

func TestShouldExit_RequiresAtLeastOneHandDealt(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()
	count := domain.CountSnapshot{TrueCount: -5}

	if exit, _ := ShouldExit(count, 0, rules); exit {
		t.Error("expected no exit signal before any hand has been dealt this shoe")
	}
	exit, reason := ShouldExit(count, 1, rules)
	if !exit {
		t.Fatal("expected exit signal once a hand has been dealt and TC is below threshold")
	}
	if !strings.Contains(reason, "-5") || !strings.Contains(reason, "-1") {
		t.Errorf("reason %q should mention the observed and threshold true counts", reason)
	}
}

// TestShouldExit_Monotone is the §8 monotonicity invariant: lowering true
// count never turns an exit signal off.
func TestShouldExit_Monotone(t *testing.T) {
	t.Parallel()
	rules := domain.DefaultGameRules()

	prevExit := false
	for tc := 5.0; tc >= -10.0; tc -= 0.5 {
		exit, _ := ShouldExit(domain.CountSnapshot{TrueCount: tc}, 1, rules)
		if prevExit && !exit {
			t.Fatalf("exit signal turned off when true_count decreased to %v", tc)
		}
		prevExit = exit
	}
}

func TestBaselineEdge_RuleAdjustments(t *testing.T) {
	t.Parallel()
	base := domain.DefaultGameRules()
	reference := BaselineEdge(base)

	h17 := base
	h17.DealerStandsSoft17 = false
	if got := BaselineEdge(h17); got <= reference {
		t.Errorf("H17 edge %v should exceed S17 edge %v", got, reference)
	}

	sixToFive := base
	sixToFive.BlackjackPayout = 1.2
	if got := BaselineEdge(sixToFive); got <= reference {
		t.Errorf("6:5 payout edge %v should exceed 3:2 edge %v", got, reference)
	}

	noDAS := base
	noDAS.DoubleAfterSplit = false
	if got := BaselineEdge(noDAS); got <= reference {
		t.Errorf("no-DAS edge %v should exceed DAS edge %v", got, reference)
	}

	noSurrender := base
	noSurrender.SurrenderAllowed = false
	if got := BaselineEdge(noSurrender); got <= reference {
		t.Errorf("no-surrender edge %v should exceed surrender-allowed edge %v", got, reference)
	}
}
