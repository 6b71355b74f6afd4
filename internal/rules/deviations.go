package rules

import "github.com/edgecount/blackjack-engine/internal/domain"

// Direction says which side of the threshold favours the deviation action:
// AtOrAbove fires when true_count >= Threshold, AtOrBelow when true_count <=
// Threshold (no index play in this table uses AtOrBelow today, but the
// Decision Engine honours it so a future entry does not need a new type).
type Direction int

const (
	AtOrAbove Direction = iota
	AtOrBelow
)

// Deviation is one Illustrious-18/Fab-4-style index play: at the given true
// count threshold, prefer Action over whatever table B says for Category vs
// DealerUp.
type Deviation struct {
	Label     string
	Category  domain.HandCategory
	DealerUp  int
	Threshold float64
	Direction Direction
	Action    domain.Action
}

// Fires reports whether the deviation's threshold condition holds at
// trueCount, given rules.DeviationThresholdMargin widens the effective
// threshold per spec §4.2 (GameRules.Validate rejects a negative margin).
func (d Deviation) Fires(trueCount float64, margin float64) bool {
	switch d.Direction {
	case AtOrBelow:
		return trueCount <= d.Threshold-margin
	default:
		return trueCount >= d.Threshold+margin
	}
}

// canonicalDeviations is the ordered Illustrious 18 + Fab 4 index-play list.
// Order matters: the Decision Engine applies the first entry that fires, and
// "15 vs T stand" and "15 vs T surrender" share the HARD(15) vs 10 key, so at
// true count 4 and above the stand entry, listed first, wins over surrender.
func canonicalDeviations() []Deviation {
	return []Deviation{
		{Label: "16 vs T stand", Category: domain.HardCategory(16), DealerUp: 10, Threshold: 0, Direction: AtOrAbove, Action: domain.ActionStand},
		{Label: "15 vs T stand", Category: domain.HardCategory(15), DealerUp: 10, Threshold: 4, Direction: AtOrAbove, Action: domain.ActionStand},
		{Label: "12 vs 3 stand", Category: domain.HardCategory(12), DealerUp: 3, Threshold: 2, Direction: AtOrAbove, Action: domain.ActionStand},
		{Label: "12 vs 2 stand", Category: domain.HardCategory(12), DealerUp: 2, Threshold: 3, Direction: AtOrAbove, Action: domain.ActionStand},
		{Label: "11 vs A double", Category: domain.HardCategory(11), DealerUp: 11, Threshold: 1, Direction: AtOrAbove, Action: domain.ActionDouble},
		{Label: "10 vs T double", Category: domain.HardCategory(10), DealerUp: 10, Threshold: 4, Direction: AtOrAbove, Action: domain.ActionDouble},
		{Label: "10 vs A double", Category: domain.HardCategory(10), DealerUp: 11, Threshold: 4, Direction: AtOrAbove, Action: domain.ActionDouble},
		{Label: "9 vs 2 double", Category: domain.HardCategory(9), DealerUp: 2, Threshold: 1, Direction: AtOrAbove, Action: domain.ActionDouble},
		{Label: "9 vs 7 double", Category: domain.HardCategory(9), DealerUp: 7, Threshold: 3, Direction: AtOrAbove, Action: domain.ActionDouble},

		// Fab 4 late-surrender index plays.
		{Label: "15 vs T surrender", Category: domain.HardCategory(15), DealerUp: 10, Threshold: 0, Direction: AtOrAbove, Action: domain.ActionSurrender},
		{Label: "15 vs A surrender", Category: domain.HardCategory(15), DealerUp: 11, Threshold: 1, Direction: AtOrAbove, Action: domain.ActionSurrender},
		{Label: "15 vs 9 surrender", Category: domain.HardCategory(15), DealerUp: 9, Threshold: 2, Direction: AtOrAbove, Action: domain.ActionSurrender},
		{Label: "14 vs T surrender", Category: domain.HardCategory(14), DealerUp: 10, Threshold: 3, Direction: AtOrAbove, Action: domain.ActionSurrender},
	}
}

// insuranceDeviationLabel names insurance, a dedicated, non-action index play: §3 Open Question
// resolves insurance as a standalone recommendation rather than a fifth
// baseline action, since it is offered against an ace up-card independent of
// the player's own hand category.
const insuranceDeviationLabel = "insurance"

// ShouldTakeInsurance reports whether the count favours taking even-money
// insurance: true count at or above rules.InsuranceThreshold (widened by
// rules.DeviationThresholdMargin exactly as action deviations are). Insurance
// is never recommended by basic strategy alone; it only ever fires as an
// index play.
func ShouldTakeInsurance(count domain.CountSnapshot, rules domain.GameRules) bool {
	threshold := rules.InsuranceThreshold + rules.DeviationThresholdMargin
	return count.TrueCount >= threshold
}
