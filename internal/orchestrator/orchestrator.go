// Package orchestrator is the multi-session actor registry of §5: each
// session runs its own goroutine behind a single-slot command channel, so
// operations on the same session never interleave: at most one operation
// waits behind the one in flight, any further concurrent operation is
// rejected with SESSION_BUSY rather than queued, and sessions never share
// mutable state with one another. Grounded on the per-entity event-channel
// actor pattern used for table concurrency in the wider retrieval pack.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/rules"
	"github.com/edgecount/blackjack-engine/internal/session"
	"github.com/edgecount/blackjack-engine/internal/shoe"
)

// StatusCache is the subset of internal/sessionstore.Store the registry
// depends on. A nil cache disables the fallback entirely: SessionStatus
// simply returns whatever SESSION_BUSY error the actor produced.
type StatusCache interface {
	StoreStatus(ctx context.Context, sessionID string, snapshot session.StatusSnapshot) error
	GetStatus(ctx context.Context, sessionID string) (session.StatusSnapshot, error)
	DeleteStatus(ctx context.Context, sessionID string) error
}

type operation func(*session.Session) (any, error)

type command struct {
	op    operation
	reply chan outcome
}

type outcome struct {
	value any
	err   error
}

// actor owns exactly one session and serialises every operation on it
// through a single-slot command channel.
type actor struct {
	sess     *session.Session
	commands chan command
	done     chan struct{}
}

func newActor(sess *session.Session) *actor {
	a := &actor{sess: sess, commands: make(chan command, 1), done: make(chan struct{})}
	go a.run()
	return a
}

func (a *actor) run() {
	for {
		select {
		case cmd := <-a.commands:
			value, err := cmd.op(a.sess)
			cmd.reply <- outcome{value: value, err: err}
		case <-a.done:
			return
		}
	}
}

// submit enqueues op for execution by the actor's goroutine. The slot frees
// as soon as the goroutine picks an operation up, so one op can wait there
// while another runs; a full command slot (one operation running and another
// already waiting) is rejected immediately as SESSION_BUSY rather than queued
// further, per §5's "acceptable to reject ... rather than queue" allowance.
func (a *actor) submit(op operation) (any, error) {
	reply := make(chan outcome, 1)
	select {
	case a.commands <- command{op: op, reply: reply}:
	default:
		return nil, fmt.Errorf("%w: session has an operation already in flight", apierr.ErrSessionBusy)
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-a.done:
		return nil, fmt.Errorf("%w: session ended while the operation was in flight", apierr.ErrSessionGone)
	}
}

func (a *actor) stop() { close(a.done) }

// SeedSource supplies the PRNG seed for a new session's shoe. A nil seed
// means "generate one", recorded on the returned status so replays can
// recover it later (§5 "Determinism and RNG").
type SeedSource func() int64

// Registry is the shared, concurrency-safe map of live session actors.
type Registry struct {
	mu     sync.RWMutex
	actors map[string]*actor
	table  *rules.StrategyTable
	seeds  SeedSource
	cache  StatusCache
}

// SetStatusCache wires a write-behind status cache into the registry (see
// StatusCache). Call it once after NewRegistry, before serving traffic; it
// is not safe to change concurrently with in-flight operations.
func (r *Registry) SetStatusCache(cache StatusCache) {
	r.cache = cache
}

// NewRegistry constructs an empty registry bound to the given immutable
// strategy table, shared by every session it creates.
func NewRegistry(table *rules.StrategyTable, seeds SeedSource) *Registry {
	if seeds == nil {
		seeds = defaultSeedSource
	}
	return &Registry{actors: make(map[string]*actor), table: table, seeds: seeds}
}

func defaultSeedSource() int64 {
	id := uuid.New()
	// Fold the random UUID into an int64 seed; the UUID's own entropy source
	// (crypto/rand) is the actual randomness, this just reshapes it.
	var seed int64
	for _, b := range id[:8] {
		seed = seed<<8 | int64(b)
	}
	return seed
}

func (r *Registry) lookup(id string) (*actor, error) {
	r.mu.RLock()
	a, ok := r.actors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no session %q", apierr.ErrSessionGone, id)
	}
	return a, nil
}

// StartSessionInput mirrors the start_session request body (§6).
type StartSessionInput struct {
	Mode     session.Mode
	Bankroll float64
	Rules    domain.GameRules
	Seed     *int64
}

// StartSessionResult mirrors the start_session response body (§6).
type StartSessionResult struct {
	SessionID string
	Mode      session.Mode
	Bankroll  float64
	Status    session.State
	Seed      int64
}

// StartSession creates a new session actor and registers it under a fresh
// UUID.
func (r *Registry) StartSession(input StartSessionInput) (StartSessionResult, error) {
	seed := r.seeds()
	if input.Seed != nil {
		seed = *input.Seed
	}
	sess, err := session.New(uuid.NewString(), input.Mode, input.Rules, input.Bankroll, r.table, shoe.NewSeededShuffler(seed))
	if err != nil {
		return StartSessionResult{}, err
	}

	r.mu.Lock()
	r.actors[sess.ID] = newActor(sess)
	r.mu.Unlock()

	return StartSessionResult{SessionID: sess.ID, Mode: sess.Mode, Bankroll: sess.Bankroll, Status: sess.State, Seed: seed}, nil
}

// EndSession stops and unregisters a session. In-flight operations on it
// complete or observe ErrSessionGone; no new operation can be submitted
// once it is removed from the map.
func (r *Registry) EndSession(id string) error {
	r.mu.Lock()
	a, ok := r.actors[id]
	if ok {
		delete(r.actors, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no session %q", apierr.ErrSessionGone, id)
	}
	a.stop()
	if r.cache != nil {
		_ = r.cache.DeleteStatus(context.Background(), id)
	}
	return nil
}

// SessionStatus answers session_status. If the session's actor is busy with
// another operation, it falls back to the last status written to the
// status cache (if one is wired) rather than failing the caller outright.
func (r *Registry) SessionStatus(id string) (session.StatusSnapshot, error) {
	a, err := r.lookup(id)
	if err != nil {
		return session.StatusSnapshot{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) { return s.Status(), nil })
	if err != nil {
		if r.cache != nil && errors.Is(err, apierr.ErrSessionBusy) {
			if cached, cacheErr := r.cache.GetStatus(context.Background(), id); cacheErr == nil {
				return cached, nil
			}
		}
		return session.StatusSnapshot{}, err
	}
	status := v.(session.StatusSnapshot)
	if r.cache != nil {
		_ = r.cache.StoreStatus(context.Background(), id, status)
	}
	return status, nil
}

func (r *Registry) Shuffle(id string) (domain.CountSnapshot, error) {
	a, err := r.lookup(id)
	if err != nil {
		return domain.CountSnapshot{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) { return s.Shuffle() })
	if err != nil {
		return domain.CountSnapshot{}, err
	}
	return v.(domain.CountSnapshot), nil
}

func (r *Registry) Observe(id string, cards []domain.Card) (session.ObserveResult, error) {
	a, err := r.lookup(id)
	if err != nil {
		return session.ObserveResult{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) { return s.Observe(cards) })
	if err != nil {
		return session.ObserveResult{}, err
	}
	return v.(session.ObserveResult), nil
}

func (r *Registry) QueryDecision(id string, playerCards []domain.Card, dealerUp domain.Card) (session.QueryDecisionResult, error) {
	a, err := r.lookup(id)
	if err != nil {
		return session.QueryDecisionResult{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) { return s.QueryDecision(playerCards, dealerUp) })
	if err != nil {
		return session.QueryDecisionResult{}, err
	}
	return v.(session.QueryDecisionResult), nil
}

func (r *Registry) QueryBet(id string) (uint32, domain.CountSnapshot, error) {
	a, err := r.lookup(id)
	if err != nil {
		return 0, domain.CountSnapshot{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) {
		bet, snap := s.QueryBet()
		return [2]any{bet, snap}, nil
	})
	if err != nil {
		return 0, domain.CountSnapshot{}, err
	}
	pair := v.([2]any)
	return pair[0].(uint32), pair[1].(domain.CountSnapshot), nil
}

func (r *Registry) Deal(id string) (session.DealResult, error) {
	a, err := r.lookup(id)
	if err != nil {
		return session.DealResult{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) {
		if s.State == session.StateSettled {
			if resetErr := s.ResetForNextHand(); resetErr != nil {
				return nil, resetErr
			}
		}
		return s.Deal()
	})
	if err != nil {
		return session.DealResult{}, err
	}
	return v.(session.DealResult), nil
}

func (r *Registry) Act(id string, action domain.Action) (session.ActionResult, error) {
	a, err := r.lookup(id)
	if err != nil {
		return session.ActionResult{}, err
	}
	v, err := a.submit(func(s *session.Session) (any, error) { return s.Act(action) })
	if err != nil {
		return session.ActionResult{}, err
	}
	return v.(session.ActionResult), nil
}
