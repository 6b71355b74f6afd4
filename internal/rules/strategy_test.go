package rules

import (
	"errors"
	"testing"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
)

func TestLoadStrategyTable_FullCoverage(t *testing.T) {
	t.Parallel()

	table, err := LoadStrategyTable()
	if err != nil {
		t.Fatalf("LoadStrategyTable() returned error: %v", err)
	}

	for total := 4; total <= 21; total++ {
		for _, du := range dealerUpValues {
			if _, ok := table.Baseline(domain.HardCategory(total), du); !ok {
				t.Errorf("missing HARD(%d) vs %d", total, du)
			}
		}
	}
	for total := 13; total <= 21; total++ {
		for _, du := range dealerUpValues {
			if _, ok := table.Baseline(domain.SoftCategory(total), du); !ok {
				t.Errorf("missing SOFT(%d) vs %d", total, du)
			}
		}
	}
	for _, rank := range allPairRanks() {
		for _, du := range dealerUpValues {
			if _, ok := table.Baseline(domain.PairCategory(rank), du); !ok {
				t.Errorf("missing PAIR(%s) vs %d", rank, du)
			}
		}
	}
}

func TestLoadStrategyTable_BadRulesOnMissingCoverage(t *testing.T) {
	t.Parallel()

	table := &StrategyTable{baseline: make(map[entryKey]domain.Action)}
	table.loadSoftTotals()
	table.loadPairs()
	// loadHardTotals deliberately skipped: coverage must fail.
	table.deviations = canonicalDeviations()

	err := table.validateCoverage()
	if err == nil {
		t.Fatal("expected validateCoverage to fail on incomplete table, got nil")
	}
	if !errors.Is(err, apierr.ErrBadRules) {
		t.Fatalf("expected ErrBadRules, got %v", err)
	}
}

func TestLoadStrategyTable_BadRulesOnDanglingDeviation(t *testing.T) {
	t.Parallel()

	table, err := LoadStrategyTable()
	if err != nil {
		t.Fatalf("LoadStrategyTable() returned error: %v", err)
	}
	table.deviations = append(table.deviations, Deviation{
		Label:    "bogus",
		Category: domain.HardCategory(16),
		DealerUp: 12, // invalid: dealer up-value must be 2..11
	})

	if err := table.validateDeviationReferences(); err == nil {
		t.Fatal("expected validateDeviationReferences to fail on out-of-range dealer_up, got nil")
	} else if !errors.Is(err, apierr.ErrBadRules) {
		t.Fatalf("expected ErrBadRules, got %v", err)
	}
}

func TestBaselineSample(t *testing.T) {
	t.Parallel()

	table, err := LoadStrategyTable()
	if err != nil {
		t.Fatalf("LoadStrategyTable() returned error: %v", err)
	}

	cases := []struct {
		name     string
		category domain.HandCategory
		dealerUp int
		want     domain.Action
	}{
		{"hard16 vs 7 hits", domain.HardCategory(16), 7, domain.ActionHit},
		{"hard16 vs 6 stands", domain.HardCategory(16), 6, domain.ActionStand},
		{"hard11 vs 9 doubles", domain.HardCategory(11), 9, domain.ActionDouble},
		{"hard11 vs ace hits", domain.HardCategory(11), 11, domain.ActionHit},
		{"pair of eights always splits", domain.PairCategory(domain.RankEight), 11, domain.ActionSplit},
		{"pair of tens never splits", domain.PairCategory(domain.RankTen), 6, domain.ActionStand},
		{"pair of fives behaves like hard 10", domain.PairCategory(domain.RankFive), 9, domain.ActionDouble},
		{"soft18 vs 9 hits", domain.SoftCategory(18), 9, domain.ActionHit},
		{"soft18 vs 6 doubles", domain.SoftCategory(18), 6, domain.ActionDouble},
		{"soft18 vs 2 stands", domain.SoftCategory(18), 2, domain.ActionStand},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := table.Baseline(tc.category, tc.dealerUp)
			if !ok {
				t.Fatalf("no baseline entry for %s vs %d", tc.category, tc.dealerUp)
			}
			if got != tc.want {
				t.Errorf("%s vs %d: got %s, want %s", tc.category, tc.dealerUp, got, tc.want)
			}
		})
	}
}
