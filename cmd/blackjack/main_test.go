package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/orchestrator"
	"github.com/edgecount/blackjack-engine/internal/rules"
)

func TestRunHand_PlaysToResolutionWithoutError(t *testing.T) {
	t.Parallel()
	table, err := rules.LoadStrategyTable()
	if err != nil {
		t.Fatalf("LoadStrategyTable failed: %v", err)
	}
	seed := int64(0)
	registry := orchestrator.NewRegistry(table, func() int64 { seed++; return seed })
	gameRules := domain.DefaultGameRules()

	started, err := registry.StartSession(orchestrator.StartSessionInput{Mode: "AUTO", Bankroll: 1000, Rules: gameRules})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	for i := 0; i < 20; i++ {
		if err := runHand(registry, started.SessionID, table, gameRules, logger); err != nil {
			if _, shuffleErr := registry.Shuffle(started.SessionID); shuffleErr != nil {
				t.Fatalf("hand %d failed and shuffle also failed: %v / %v", i, err, shuffleErr)
			}
			continue
		}
	}

	status, err := registry.SessionStatus(started.SessionID)
	if err != nil {
		t.Fatalf("SessionStatus failed: %v", err)
	}
	if status.HandsPlayed == 0 {
		t.Fatal("expected at least one hand to have been played")
	}
}
