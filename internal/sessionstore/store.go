// Package sessionstore is a write-behind Redis cache of session status
// snapshots. It is never the source of truth — the orchestrator's in-memory
// actor always is — it exists so a session_status query can still answer
// with a (slightly stale) snapshot when the owning actor rejects the
// request as SESSION_BUSY instead of simply failing the caller. Grounded on
// the session-snapshot caching pattern (StoreUserSession/GetUserSession) in
// the wider retrieval pack's Redis-backed services.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/session"
)

// ErrNotFound is returned by GetStatus when nothing is cached for a session,
// either because it was never written or because the TTL has elapsed.
var ErrNotFound = errors.New("sessionstore: no cached status for session")

// Store is a Redis-backed cache of session.StatusSnapshot, keyed by session
// ID.
type Store struct {
	client *redis.Client
}

// New wraps an already-configured *redis.Client. Callers own the client's
// lifecycle (including Close).
func New(client *redis.Client) Store {
	return Store{client: client}
}

// Ping verifies connectivity, mirroring the connect-time Ping the wider
// pack's Redis services perform before being handed to callers.
func (s Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("sessionstore: ping redis: %w", err)
	}
	return nil
}

type cachedStatus struct {
	Mode          session.Mode         `json:"mode"`
	State         session.State        `json:"state"`
	CountSnapshot domain.CountSnapshot `json:"count_snapshot"`
	Bankroll      float64              `json:"bankroll"`
	HandsPlayed   int                  `json:"hands_played"`
}

// StoreStatus writes through the latest status snapshot for sessionID,
// replacing any prior cached value and resetting its TTL.
func (s Store) StoreStatus(ctx context.Context, sessionID string, snapshot session.StatusSnapshot) error {
	data, err := json.Marshal(cachedStatus{
		Mode:          snapshot.Mode,
		State:         snapshot.State,
		CountSnapshot: snapshot.CountSnapshot,
		Bankroll:      snapshot.Bankroll,
		HandsPlayed:   snapshot.HandsPlayed,
	})
	if err != nil {
		return fmt.Errorf("sessionstore: marshal status: %w", err)
	}
	key := fmt.Sprintf(KeySessionStatus, sessionID)
	if err := s.client.Set(ctx, key, data, TTLSessionStatus).Err(); err != nil {
		return fmt.Errorf("sessionstore: set %s: %w", key, err)
	}
	return nil
}

// GetStatus returns the last status snapshot written for sessionID, or
// ErrNotFound if nothing is cached.
func (s Store) GetStatus(ctx context.Context, sessionID string) (session.StatusSnapshot, error) {
	key := fmt.Sprintf(KeySessionStatus, sessionID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.StatusSnapshot{}, ErrNotFound
		}
		return session.StatusSnapshot{}, fmt.Errorf("sessionstore: get %s: %w", key, err)
	}

	var cached cachedStatus
	if err := json.Unmarshal(data, &cached); err != nil {
		return session.StatusSnapshot{}, fmt.Errorf("sessionstore: unmarshal status: %w", err)
	}
	return session.StatusSnapshot{
		Mode:          cached.Mode,
		State:         cached.State,
		CountSnapshot: cached.CountSnapshot,
		Bankroll:      cached.Bankroll,
		HandsPlayed:   cached.HandsPlayed,
	}, nil
}

// DeleteStatus evicts any cached snapshot for sessionID. Called by
// end_session so a stale snapshot never outlives the session it describes
// by more than this call's latency.
func (s Store) DeleteStatus(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf(KeySessionStatus, sessionID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("sessionstore: del %s: %w", key, err)
	}
	return nil
}
