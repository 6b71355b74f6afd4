// Command blackjack runs a local auto-mode simulation: a session plays a
// fixed number of hands against the built-in strategy engine and logs a
// structured summary of each hand, with no HTTP server involved. It exists
// for quick local sanity-checking of the engine the way the wider
// retrieval pack's own simulation binaries exercise a table loop without a
// network round trip.
package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/orchestrator"
	"github.com/edgecount/blackjack-engine/internal/rules"
)

func main() {
	handCount := flag.Int("hands", 100, "number of hands to simulate")
	bankroll := flag.Float64("bankroll", 1000, "starting bankroll")
	seed := flag.Int64("seed", 0, "shoe PRNG seed (0 generates a random one)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	table, err := rules.LoadStrategyTable()
	if err != nil {
		logger.Error("load strategy table", "error", err)
		os.Exit(1)
	}
	gameRules := domain.DefaultGameRules()

	var seedSource orchestrator.SeedSource
	if *seed != 0 {
		seedSource = func() int64 { return *seed }
	}
	registry := orchestrator.NewRegistry(table, seedSource)

	started, err := registry.StartSession(orchestrator.StartSessionInput{
		Mode:     "AUTO",
		Bankroll: *bankroll,
		Rules:    gameRules,
	})
	if err != nil {
		logger.Error("start session", "error", err)
		os.Exit(1)
	}
	logger.Info("session started", "session_id", started.SessionID, "bankroll", started.Bankroll, "seed", started.Seed)

	for i := 0; i < *handCount; i++ {
		if err := runHand(registry, started.SessionID, table, gameRules, logger); err != nil {
			if errors.Is(err, apierr.ErrShoeExhausted) {
				if _, err := registry.Shuffle(started.SessionID); err != nil {
					logger.Error("shuffle", "error", err)
					break
				}
				logger.Info("shoe reshuffled", "hand", i+1)
				continue
			}
			logger.Error("hand failed", "hand", i+1, "error", err)
			break
		}
	}

	status, err := registry.SessionStatus(started.SessionID)
	if err != nil {
		logger.Error("final session status", "error", err)
		os.Exit(1)
	}
	logger.Info("session complete",
		"hands_played", status.HandsPlayed,
		"bankroll", status.Bankroll,
		"true_count", status.CountSnapshot.TrueCount,
	)

	if err := registry.EndSession(started.SessionID); err != nil {
		logger.Error("end session", "error", err)
		os.Exit(1)
	}
}

// runHand deals one round and plays it to resolution, computing each
// action the same way a shadow-mode caller would query it and feeding the
// recommendation straight back into Act. Splits are flattened to a hit,
// keeping this driver to a single tracked hand the way a quick local
// smoke test needs rather than a full multi-hand player.
func runHand(registry *orchestrator.Registry, sessionID string, table *rules.StrategyTable, gameRules domain.GameRules, logger *slog.Logger) error {
	dealt, err := registry.Deal(sessionID)
	if err != nil {
		return err
	}
	if dealt.IsBlackjack {
		logger.Info("hand dealt", "player_total", dealt.PlayerTotal, "blackjack", true)
		return nil
	}
	logger.Info("hand dealt", "player_total", dealt.PlayerTotal, "dealer_up", dealt.DealerUp.String())

	cards := append([]domain.Card(nil), dealt.PlayerCards...)
	snap := dealt.CountSnapshot

	for {
		hand := domain.NewHand(cards...)
		ctx := rules.InitialTwoCardContext(hand, gameRules)
		action, err := rules.Decide(hand, dealt.DealerUp.Rank, snap, gameRules, table, ctx)
		if err != nil {
			return err
		}
		if action == domain.ActionSplit {
			action = domain.ActionHit
		}

		result, err := registry.Act(sessionID, action)
		if err != nil {
			return err
		}
		if result.NewCard != nil {
			cards = append(cards, *result.NewCard)
		}
		snap = result.CountSnapshot

		logger.Info("action taken",
			"action", result.ActionTaken,
			"is_correct", result.IsCorrect,
			"should_exit", result.ShouldExit,
		)

		if result.Outcome != nil {
			return nil
		}
	}
}
