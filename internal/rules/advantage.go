package rules

import (
	"fmt"
	"math"

	"github.com/edgecount/blackjack-engine/internal/domain"
)

// kellyVariance is the empirical per-hand variance of blackjack outcomes
// used to convert an edge into a Kelly fraction.
const kellyVariance = 1.26

// BaselineEdge estimates the house edge implied by rules, starting from the
// ~0.4% reference edge for 6-deck S17/DAS/late-surrender/3:2 and applying
// the documented rule adjustments. Rule combinations outside the named set
// are treated as interpolations of the same adjustments rather than a
// separate table.
func BaselineEdge(rules domain.GameRules) float64 {
	edge := 0.004
	if !rules.DealerStandsSoft17 {
		edge += 0.0022
	}
	if rules.BlackjackPayout < 1.5 {
		edge += 0.0139
	}
	if !rules.DoubleAfterSplit {
		edge += 0.0014
	}
	if !rules.SurrenderAllowed {
		edge += 0.0008
	}
	return edge
}

// Advantage converts a true count into the player's estimated edge: +0.5%
// per true count point above the rules' baseline house edge.
func Advantage(trueCount float64, rules domain.GameRules) float64 {
	return trueCount*0.005 - BaselineEdge(rules)
}

// RecommendedBet implements the Bet-Sizing Engine: fractional-Kelly sizing
// from the current count and bankroll, clamped to the table limits, with a
// deep-penetration defensive cutoff that overrides everything else.
func RecommendedBet(count domain.CountSnapshot, bankroll float64, rules domain.GameRules) uint32 {
	if count.Penetration > rules.MaxBettingPenetration {
		return rules.TableMin
	}

	advantage := Advantage(count.TrueCount, rules)
	if advantage <= 0 {
		return rules.TableMin
	}

	fraction := rules.KellyFraction * advantage / kellyVariance
	bet := roundToTableUnits(fraction*bankroll, rules.TableMin)
	return clampBet(bet, rules.TableMin, rules.TableMax)
}

func roundToTableUnits(raw float64, unit uint32) uint32 {
	if unit == 0 {
		unit = 1
	}
	units := math.Round(raw / float64(unit))
	if units < 1 {
		units = 1
	}
	return uint32(units) * unit
}

func clampBet(bet, min, max uint32) uint32 {
	switch {
	case bet < min:
		return min
	case bet > max:
		return max
	default:
		return bet
	}
}

// ShouldExit implements the Wong-out predicate: true count below threshold,
// with at least one hand already dealt this shoe (a fresh shoe's TC of 0 is
// never itself a reason to leave). Not an error — advisory data attached to
// a successful response.
func ShouldExit(count domain.CountSnapshot, handsDealtThisShoe int, rules domain.GameRules) (shouldExit bool, reason string) {
	if handsDealtThisShoe == 0 {
		return false, ""
	}
	if count.TrueCount < rules.WongOutThreshold {
		return true, fmt.Sprintf("true count %.1f is below wong-out threshold %.1f", count.TrueCount, rules.WongOutThreshold)
	}
	return false, ""
}
