// Package session implements the single-session hand life cycle of the
// Session Orchestrator (§4.4): mode-aware state transitions, dealing,
// player actions, dealer play and settlement. A Session is mutated in
// place; the actor registry in internal/orchestrator is what gives callers
// the single-threaded-per-session discipline this package assumes.
package session

import (
	"fmt"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/rules"
	"github.com/edgecount/blackjack-engine/internal/shoe"
)

// Mode is the session's operating mode.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
)

// ParseMode parses the wire mode token.
func ParseMode(token string) (Mode, error) {
	switch Mode(token) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	default:
		return "", fmt.Errorf("%w: mode must be AUTO or MANUAL, got %q", apierr.ErrBadInput, token)
	}
}

// State is the orchestrator state for one session's current round.
type State string

const (
	StateIdle       State = "IDLE"
	StatePlayerTurn State = "PLAYER_TURN"
	StateDealerTurn State = "DEALER_TURN"
	StateSettled    State = "SETTLED"
)

// PlayerHand is one of the (possibly several, after splitting) hands in
// play for the current round.
type PlayerHand struct {
	Cards       []domain.Card
	Bet         uint32
	Stood       bool
	Doubled     bool
	Surrendered bool
	FromSplit   bool
	IsSplitAces bool
	Settled     bool
	Outcome     domain.Outcome
}

// Hand returns the domain.Hand view of the cards dealt to this PlayerHand.
func (h PlayerHand) Hand() domain.Hand { return domain.NewHand(h.Cards...) }

func (h PlayerHand) resolved() bool {
	return h.Stood || h.Settled
}

// Statistics aggregates session activity for reporting (§3 Supplemented
// features: Session.statistics).
type Statistics struct {
	HandsPlayed         int
	HandsWon            int
	HandsLost           int
	HandsPushed         int
	TotalWagered        float64
	NetResult           float64
	DeviationsFollowed  int
	DeviationsMissed    int
}

// Session is one caller's game state: its shoe, rules, bankroll, and the
// hands currently in play.
type Session struct {
	ID                 string
	Mode               Mode
	Rules              domain.GameRules
	Bankroll           float64
	State              State
	ActiveHandIndex    int
	Hands              []PlayerHand
	DealerUpCard       domain.Card
	DealerHoleCard     domain.Card
	HoleCardRevealed   bool
	DealerHand         domain.Hand
	Shoe               *shoe.VirtualShoe
	HandsDealtThisShoe int
	Statistics         Statistics

	table *rules.StrategyTable
}

// New constructs a session in state IDLE with a freshly shuffled shoe.
func New(id string, mode Mode, gameRules domain.GameRules, bankroll float64, table *rules.StrategyTable, shuffler shoe.Shuffler) (*Session, error) {
	if err := gameRules.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: strategy table is required", apierr.ErrBadRules)
	}
	return &Session{
		ID:       id,
		Mode:     mode,
		Rules:    gameRules,
		Bankroll: bankroll,
		State:    StateIdle,
		Shoe:     shoe.NewVirtualShoe(gameRules.NumDecks, shuffler),
		table:    table,
	}, nil
}

func (s *Session) requireState(want State) error {
	if s.State != want {
		return fmt.Errorf("%w: operation requires state %s, session is %s", apierr.ErrWrongState, want, s.State)
	}
	return nil
}

func (s *Session) requireMode(want Mode) error {
	if s.Mode != want {
		return fmt.Errorf("%w: operation requires mode %s, session is %s", apierr.ErrWrongMode, want, s.Mode)
	}
	return nil
}

// Shuffle resets the shoe's counting state and deck, legal only from IDLE.
func (s *Session) Shuffle() (domain.CountSnapshot, error) {
	if err := s.requireState(StateIdle); err != nil {
		return domain.CountSnapshot{}, err
	}
	s.Shoe.Shuffle()
	s.HandsDealtThisShoe = 0
	return s.Shoe.Snapshot(), nil
}

// Observe forwards externally-dealt cards into the shoe. Shadow-mode only.
// ObserveResult is the response to a shadow-mode observation (spec §6).
type ObserveResult struct {
	CountSnapshot  domain.CountSnapshot
	RecommendedBet uint32
}

func (s *Session) Observe(cards []domain.Card) (ObserveResult, error) {
	if err := s.requireMode(ModeManual); err != nil {
		return ObserveResult{}, err
	}
	if err := s.requireState(StateIdle); err != nil {
		return ObserveResult{}, err
	}
	for _, c := range cards {
		if err := s.Shoe.Observe(c); err != nil {
			return ObserveResult{}, err
		}
	}
	snap := s.Shoe.Snapshot()
	return ObserveResult{CountSnapshot: snap, RecommendedBet: rules.RecommendedBet(snap, s.Bankroll, s.Rules)}, nil
}

// QueryDecisionResult is the response to a shadow-mode decision query.
type QueryDecisionResult struct {
	RecommendedAction domain.Action
	CountSnapshot     domain.CountSnapshot
	RecommendedBet    uint32
	ShouldExit        bool
	ExitReason        string
}

// QueryDecision evaluates §4.2/§4.3 against a transient hand without
// mutating the shoe. Shadow-mode only.
func (s *Session) QueryDecision(playerCards []domain.Card, dealerUp domain.Card) (QueryDecisionResult, error) {
	if err := s.requireMode(ModeManual); err != nil {
		return QueryDecisionResult{}, err
	}
	hand := domain.NewHand(playerCards...)
	snap := s.Shoe.Snapshot()
	ctx := rules.InitialTwoCardContext(hand, s.Rules)

	action, err := rules.Decide(hand, dealerUp.Rank, snap, s.Rules, s.table, ctx)
	if err != nil {
		return QueryDecisionResult{}, err
	}
	bet := rules.RecommendedBet(snap, s.Bankroll, s.Rules)
	shouldExit, reason := rules.ShouldExit(snap, s.HandsDealtThisShoe, s.Rules)

	return QueryDecisionResult{
		RecommendedAction: action,
		CountSnapshot:     snap,
		RecommendedBet:    bet,
		ShouldExit:        shouldExit,
		ExitReason:        reason,
	}, nil
}

// QueryBet evaluates §4.3 against the current shoe snapshot.
func (s *Session) QueryBet() (uint32, domain.CountSnapshot) {
	snap := s.Shoe.Snapshot()
	return rules.RecommendedBet(snap, s.Bankroll, s.Rules), snap
}

// DealResult is the response to an auto-mode deal.
type DealResult struct {
	PlayerCards    []domain.Card
	PlayerTotal    int
	DealerUp       domain.Card
	IsBlackjack    bool
	CountSnapshot  domain.CountSnapshot
	RecommendedBet uint32
}

// Deal draws a new round: two player cards and the dealer's up-card are
// observed immediately; the dealer's hole card is drawn but held back from
// the count until DEALER_TURN (§4.4, §9 "Auto-mode hole-card hazard").
// Auto-mode only, legal only from IDLE.
func (s *Session) Deal() (DealResult, error) {
	if err := s.requireMode(ModeAuto); err != nil {
		return DealResult{}, err
	}
	if err := s.requireState(StateIdle); err != nil {
		return DealResult{}, err
	}
	if s.Shoe.CardsRemaining() < 4 {
		return DealResult{}, fmt.Errorf("%w: fewer than 4 cards remain, shuffle before dealing", apierr.ErrShoeExhausted)
	}

	preSnap := s.Shoe.Snapshot()
	bet := rules.RecommendedBet(preSnap, s.Bankroll, s.Rules)

	p1, err := s.Shoe.Draw()
	if err != nil {
		return DealResult{}, err
	}
	dealerUp, err := s.Shoe.Draw()
	if err != nil {
		return DealResult{}, err
	}
	p2, err := s.Shoe.Draw()
	if err != nil {
		return DealResult{}, err
	}
	hole, err := s.Shoe.DrawHidden()
	if err != nil {
		return DealResult{}, err
	}

	s.DealerUpCard = dealerUp
	s.DealerHoleCard = hole
	s.HoleCardRevealed = false
	s.HandsDealtThisShoe++

	hand := PlayerHand{Cards: []domain.Card{p1, p2}, Bet: bet}
	s.Hands = []PlayerHand{hand}
	s.ActiveHandIndex = 0

	total, _ := hand.Hand().Total()
	isBJ := hand.Hand().IsBlackjack()

	if isBJ {
		if err := s.settleBlackjackRound(); err != nil {
			return DealResult{}, err
		}
	} else {
		s.State = StatePlayerTurn
	}

	return DealResult{
		PlayerCards:    hand.Cards,
		PlayerTotal:    total,
		DealerUp:       dealerUp,
		IsBlackjack:    isBJ,
		CountSnapshot:  s.Shoe.Snapshot(),
		RecommendedBet: bet,
	}, nil
}

// settleBlackjackRound resolves an immediate player natural: reveal the hole
// card to check for a push against dealer blackjack, then settle.
func (s *Session) settleBlackjackRound() error {
	if err := s.revealHoleCard(); err != nil {
		return err
	}
	dealerHand := domain.NewHand(s.DealerUpCard, s.DealerHoleCard)
	hand := &s.Hands[0]
	hand.Settled = true
	if dealerHand.IsBlackjack() {
		hand.Outcome = domain.OutcomePush
	} else {
		hand.Outcome = domain.OutcomeBlackjack
		s.Bankroll += float64(hand.Bet) * s.Rules.BlackjackPayout
	}
	s.DealerHand = dealerHand
	s.recordStatistics(*hand)
	s.State = StateSettled
	return nil
}

func (s *Session) revealHoleCard() error {
	if s.HoleCardRevealed {
		return nil
	}
	if err := s.Shoe.Reveal(s.DealerHoleCard); err != nil {
		return err
	}
	s.HoleCardRevealed = true
	return nil
}

// ActionResult is the response to an auto-mode action.
type ActionResult struct {
	ActionTaken   domain.Action
	CorrectAction domain.Action
	IsCorrect     bool
	NewCard       *domain.Card
	NewTotal      *int
	Outcome       *domain.Outcome
	DealerTotal   *int
	ShouldExit    bool
	ExitReason    string
	CountSnapshot domain.CountSnapshot
}

func (s *Session) legalityContext(hand PlayerHand) rules.DecisionContext {
	untouched := len(hand.Cards) == 2
	canSplit := untouched && hand.Hand().IsPair() && s.currentSplitHandCount() < s.Rules.MaxSplitHands &&
		(hand.Cards[0].Rank != domain.RankAce || s.Rules.ResplitAces || !hand.FromSplit)
	canDouble := untouched && !hand.IsSplitAces && (!hand.FromSplit || s.Rules.DoubleAfterSplit)
	canSurrender := untouched && !hand.FromSplit && s.Rules.SurrenderAllowed
	return rules.DecisionContext{CanDouble: canDouble, CanSplit: canSplit, CanSurrender: canSurrender}
}

func (s *Session) currentSplitHandCount() int {
	count := 0
	for _, h := range s.Hands {
		if h.FromSplit {
			count++
		}
	}
	return count
}

// Act applies one player action to the active hand.
func (s *Session) Act(action domain.Action) (ActionResult, error) {
	if err := s.requireMode(ModeAuto); err != nil {
		return ActionResult{}, err
	}
	if err := s.requireState(StatePlayerTurn); err != nil {
		return ActionResult{}, err
	}
	hand := s.Hands[s.ActiveHandIndex]
	if hand.resolved() {
		return ActionResult{}, fmt.Errorf("%w: active hand already resolved", apierr.ErrWrongState)
	}

	ctx := s.legalityContext(hand)
	if !actionIsLegal(action, ctx) {
		return ActionResult{}, fmt.Errorf("%w: %s is not legal for this hand", apierr.ErrIllegalAction, action)
	}

	snap := s.Shoe.Snapshot()
	correctAction, err := rules.Decide(hand.Hand(), s.DealerUpCard.Rank, snap, s.Rules, s.table, ctx)
	if err != nil {
		return ActionResult{}, err
	}
	isCorrect := action == correctAction
	s.recordDeviationTally(isCorrect)

	result := ActionResult{ActionTaken: action, CorrectAction: correctAction, IsCorrect: isCorrect}
	actedIndex := s.ActiveHandIndex

	switch action {
	case domain.ActionHit:
		if err := s.applyHit(&result); err != nil {
			return ActionResult{}, err
		}
	case domain.ActionStand:
		s.applyStand()
	case domain.ActionDouble:
		if err := s.applyDouble(&result); err != nil {
			return ActionResult{}, err
		}
	case domain.ActionSplit:
		if err := s.applySplit(); err != nil {
			return ActionResult{}, err
		}
	case domain.ActionSurrender:
		s.applySurrender(&result)
	default:
		return ActionResult{}, fmt.Errorf("%w: unknown action %s", apierr.ErrIllegalAction, action)
	}

	if err := s.advanceIfNeeded(&result, actedIndex); err != nil {
		return ActionResult{}, err
	}

	result.CountSnapshot = s.Shoe.Snapshot()
	shouldExit, reason := rules.ShouldExit(result.CountSnapshot, s.HandsDealtThisShoe, s.Rules)
	result.ShouldExit = shouldExit
	result.ExitReason = reason
	return result, nil
}

func actionIsLegal(action domain.Action, ctx rules.DecisionContext) bool {
	switch action {
	case domain.ActionHit, domain.ActionStand:
		return true
	case domain.ActionDouble:
		return ctx.CanDouble
	case domain.ActionSplit:
		return ctx.CanSplit
	case domain.ActionSurrender:
		return ctx.CanSurrender
	default:
		return false
	}
}

func (s *Session) recordDeviationTally(isCorrect bool) {
	if isCorrect {
		s.Statistics.DeviationsFollowed++
	} else {
		s.Statistics.DeviationsMissed++
	}
}

func (s *Session) applyHit(result *ActionResult) error {
	hand := &s.Hands[s.ActiveHandIndex]
	card, err := s.Shoe.Draw()
	if err != nil {
		return err
	}
	hand.Cards = append(hand.Cards, card)
	total, _ := hand.Hand().Total()
	result.NewCard = &card
	result.NewTotal = &total

	switch {
	case hand.Hand().IsBust():
		outcome := domain.OutcomeBust
		hand.Outcome = outcome
		hand.Settled = true
		result.Outcome = &outcome
	case total == 21:
		hand.Stood = true
	}
	return nil
}

func (s *Session) applyStand() {
	s.Hands[s.ActiveHandIndex].Stood = true
}

func (s *Session) applyDouble(result *ActionResult) error {
	hand := &s.Hands[s.ActiveHandIndex]
	hand.Bet *= 2
	hand.Doubled = true
	card, err := s.Shoe.Draw()
	if err != nil {
		return err
	}
	hand.Cards = append(hand.Cards, card)
	total, _ := hand.Hand().Total()
	result.NewCard = &card
	result.NewTotal = &total
	hand.Stood = true
	if hand.Hand().IsBust() {
		outcome := domain.OutcomeBust
		hand.Outcome = outcome
		hand.Settled = true
		result.Outcome = &outcome
	}
	return nil
}

func (s *Session) applySplit() error {
	hand := s.Hands[s.ActiveHandIndex]
	isAces := hand.Cards[0].Rank == domain.RankAce

	first := PlayerHand{Cards: []domain.Card{hand.Cards[0]}, Bet: hand.Bet, FromSplit: true, IsSplitAces: isAces}
	second := PlayerHand{Cards: []domain.Card{hand.Cards[1]}, Bet: hand.Bet, FromSplit: true, IsSplitAces: isAces}

	c1, err := s.Shoe.Draw()
	if err != nil {
		return err
	}
	first.Cards = append(first.Cards, c1)
	c2, err := s.Shoe.Draw()
	if err != nil {
		return err
	}
	second.Cards = append(second.Cards, c2)

	if isAces {
		// Split aces are frozen: exactly one card each, no further action.
		first.Stood = true
		second.Stood = true
	}

	replacement := make([]PlayerHand, 0, len(s.Hands)+1)
	replacement = append(replacement, s.Hands[:s.ActiveHandIndex]...)
	replacement = append(replacement, first, second)
	replacement = append(replacement, s.Hands[s.ActiveHandIndex+1:]...)
	s.Hands = replacement
	return nil
}

func (s *Session) applySurrender(result *ActionResult) {
	hand := &s.Hands[s.ActiveHandIndex]
	hand.Surrendered = true
	hand.Settled = true
	outcome := domain.OutcomeSurrender
	hand.Outcome = outcome
	result.Outcome = &outcome
}

// advanceIfNeeded moves to the next unresolved hand, or transitions out of
// PLAYER_TURN when every hand has stood, busted or surrendered. When the
// round settles as a direct result of this call, it fills result.Outcome and
// result.DealerTotal for the hand that was active when Act was called,
// matching the action (auto) response schema.
func (s *Session) advanceIfNeeded(result *ActionResult, actedIndex int) error {
	if !s.Hands[s.ActiveHandIndex].resolved() {
		return nil
	}
	for i := s.ActiveHandIndex + 1; i < len(s.Hands); i++ {
		if !s.Hands[i].resolved() {
			s.ActiveHandIndex = i
			return nil
		}
	}

	needsDealer := false
	for _, h := range s.Hands {
		if h.Stood && !h.Settled {
			needsDealer = true
			break
		}
	}
	if !needsDealer {
		if err := s.settleWithoutDealerPlay(); err != nil {
			return err
		}
		s.State = StateSettled
		s.fillSettledResult(result, actedIndex, false)
		return nil
	}

	s.State = StateDealerTurn
	if err := s.playDealerAndSettle(); err != nil {
		return err
	}
	s.fillSettledResult(result, actedIndex, true)
	return nil
}

// fillSettledResult populates the outcome/dealer-total fields of the action
// response for the hand that was active when Act was invoked, once the round
// has just settled. Immediate-bust and surrender paths already set
// result.Outcome themselves, so this only fills it in when still unset.
func (s *Session) fillSettledResult(result *ActionResult, actedIndex int, dealerPlayed bool) {
	if actedIndex < 0 || actedIndex >= len(s.Hands) {
		return
	}
	hand := s.Hands[actedIndex]
	if result.Outcome == nil && hand.Settled {
		outcome := hand.Outcome
		result.Outcome = &outcome
	}
	if dealerPlayed {
		total, _ := s.DealerHand.Total()
		result.DealerTotal = &total
	}
}

// settleWithoutDealerPlay resolves a round where every hand busted or
// surrendered: the dealer never draws, but the hole card was still dealt and
// must still be folded into the running count.
func (s *Session) settleWithoutDealerPlay() error {
	if err := s.revealHoleCard(); err != nil {
		return err
	}
	for i := range s.Hands {
		s.recordStatistics(s.Hands[i])
	}
	return nil
}

func (s *Session) playDealerAndSettle() error {
	if err := s.revealHoleCard(); err != nil {
		return err
	}
	dealerHand := domain.NewHand(s.DealerUpCard, s.DealerHoleCard)

	for {
		total, soft := dealerHand.Total()
		if total > 21 {
			break
		}
		if total > 17 || (total == 17 && !(soft && !s.Rules.DealerStandsSoft17)) {
			break
		}
		card, err := s.Shoe.Draw()
		if err != nil {
			return err
		}
		dealerHand = dealerHand.Add(card)
	}
	s.DealerHand = dealerHand

	for i := range s.Hands {
		hand := &s.Hands[i]
		if hand.Settled {
			continue
		}
		hand.Outcome = settleOutcome(hand.Hand(), dealerHand, s.Rules)
		hand.Settled = true
	}
	for i := range s.Hands {
		s.recordStatistics(s.Hands[i])
	}
	s.State = StateSettled
	return nil
}

func settleOutcome(player, dealer domain.Hand, gameRules domain.GameRules) domain.Outcome {
	playerTotal, _ := player.Total()
	dealerTotal, _ := dealer.Total()
	switch {
	case dealer.IsBust():
		return domain.OutcomeWin
	case playerTotal > dealerTotal:
		return domain.OutcomeWin
	case playerTotal < dealerTotal:
		return domain.OutcomeLoss
	default:
		return domain.OutcomePush
	}
}

func (s *Session) recordStatistics(hand PlayerHand) {
	s.Statistics.HandsPlayed++
	s.Statistics.TotalWagered += float64(hand.Bet)
	switch hand.Outcome {
	case domain.OutcomeWin:
		s.Statistics.HandsWon++
		s.Bankroll += float64(hand.Bet)
		s.Statistics.NetResult += float64(hand.Bet)
	case domain.OutcomeBlackjack:
		s.Statistics.HandsWon++
		s.Statistics.NetResult += float64(hand.Bet) * s.Rules.BlackjackPayout
	case domain.OutcomeLoss, domain.OutcomeBust:
		s.Statistics.HandsLost++
		s.Bankroll -= float64(hand.Bet)
		s.Statistics.NetResult -= float64(hand.Bet)
	case domain.OutcomeSurrender:
		s.Statistics.HandsLost++
		s.Bankroll -= float64(hand.Bet) / 2
		s.Statistics.NetResult -= float64(hand.Bet) / 2
	case domain.OutcomePush:
		s.Statistics.HandsPushed++
	}
}

// StatusSnapshot is the response to session_status.
type StatusSnapshot struct {
	Mode          Mode
	State         State
	CountSnapshot domain.CountSnapshot
	Bankroll      float64
	HandsPlayed   int
}

func (s *Session) Status() StatusSnapshot {
	return StatusSnapshot{
		Mode:          s.Mode,
		State:         s.State,
		CountSnapshot: s.Shoe.Snapshot(),
		Bankroll:      s.Bankroll,
		HandsPlayed:   s.Statistics.HandsPlayed,
	}
}

// ResetForNextHand transitions a SETTLED session back to IDLE. The caller
// (orchestrator) invokes this immediately before the next deal.
func (s *Session) ResetForNextHand() error {
	if err := s.requireState(StateSettled); err != nil {
		return err
	}
	s.State = StateIdle
	s.Hands = nil
	s.ActiveHandIndex = 0
	return nil
}
