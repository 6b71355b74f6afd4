package rules

import (
	"fmt"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
)

// DecisionContext carries the legality facts the pure Decision Engine cannot
// derive from the hand alone: whether double, split and surrender are each
// still allowed, given how many cards have been played on the hand and the
// session's split/resplit/surrender rules. The caller (session) computes these from its own state
// before asking for a decision, keeping this package free of session state.
type DecisionContext struct {
	CanDouble    bool
	CanSplit     bool
	CanSurrender bool
}

// InitialTwoCardContext derives the legality context from the hand's own
// shape: double and surrender are only ever candidates on an untouched
// two-card hand, split only on an untouched two-card pair. Safe to reuse for
// a shadow-mode query where no session state tracks whether the hand has
// been acted on, since a hand longer than two cards could not legally reach
// this point with double/split/surrender still on the table anyway.
func InitialTwoCardContext(hand domain.Hand, rules domain.GameRules) DecisionContext {
	freshTwoCard := len(hand.Cards) == 2
	return DecisionContext{
		CanDouble:    freshTwoCard,
		CanSplit:     freshTwoCard && hand.IsPair(),
		CanSurrender: freshTwoCard && rules.SurrenderAllowed,
	}
}

func sameCategory(a, b domain.HandCategory) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case domain.CategoryPair:
		return a.PairRank == b.PairRank
	default:
		return a.Total == b.Total
	}
}

// Decide implements the core Decision Engine: categorise, look up baseline,
// apply the first matching deviation, then filter for legality. Pure: same
// inputs always yield the same output and nothing is mutated.
func Decide(hand domain.Hand, dealerUp domain.Rank, count domain.CountSnapshot, rules domain.GameRules, table *StrategyTable, ctx DecisionContext) (domain.Action, error) {
	if table == nil {
		return "", fmt.Errorf("%w: strategy table is nil", apierr.ErrBadRules)
	}

	category := hand.Category()
	dealerUpValue := domain.DealerUpValue(dealerUp)

	baseline, ok := table.Baseline(category, dealerUpValue)
	if !ok {
		return "", fmt.Errorf("%w: no baseline entry for %s vs %d", apierr.ErrBadRules, category, dealerUpValue)
	}

	action := baseline
	margin := rules.DeviationThresholdMargin
	for _, d := range table.deviations {
		if !sameCategory(d.Category, category) || d.DealerUp != dealerUpValue {
			continue
		}
		if d.Fires(count.TrueCount, margin) {
			action = d.Action
			break
		}
	}

	return applyLegality(action, hand, dealerUpValue, table, ctx)
}

func applyLegality(action domain.Action, hand domain.Hand, dealerUpValue int, table *StrategyTable, ctx DecisionContext) (domain.Action, error) {
	switch action {
	case domain.ActionSplit:
		if ctx.CanSplit {
			return action, nil
		}
		fallback, ok := table.Baseline(hand.HardOrSoftCategory(), dealerUpValue)
		if !ok {
			return "", fmt.Errorf("%w: no fallback baseline entry for %s vs %d", apierr.ErrBadRules, hand.HardOrSoftCategory(), dealerUpValue)
		}
		if fallback == domain.ActionDouble && !ctx.CanDouble {
			return domain.ActionHit, nil
		}
		return fallback, nil
	case domain.ActionDouble:
		if !ctx.CanDouble {
			return domain.ActionHit, nil
		}
		return action, nil
	case domain.ActionSurrender:
		if !ctx.CanSurrender {
			return domain.ActionHit, nil
		}
		return action, nil
	default:
		return action, nil
	}
}
