// Package api is the HTTP surface over internal/orchestrator implementing
// every operation of the external interface: start_session, end_session,
// session_status, shuffle, deal, action, observe, and query_decision. It
// hand-rolls its own routing rather than pulling in a router library, the
// same choice the wider retrieval pack's own HTTP servers make for a
// handful of routes.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edgecount/blackjack-engine/internal/apierr"
	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/orchestrator"
	"github.com/edgecount/blackjack-engine/internal/persistence"
	"github.com/edgecount/blackjack-engine/internal/session"
)

// Registry is the subset of *orchestrator.Registry the server depends on.
type Registry interface {
	StartSession(input orchestrator.StartSessionInput) (orchestrator.StartSessionResult, error)
	EndSession(id string) error
	SessionStatus(id string) (session.StatusSnapshot, error)
	Shuffle(id string) (domain.CountSnapshot, error)
	Deal(id string) (session.DealResult, error)
	Act(id string, action domain.Action) (session.ActionResult, error)
	Observe(id string, cards []domain.Card) (session.ObserveResult, error)
	QueryDecision(id string, playerCards []domain.Card, dealerUp domain.Card) (session.QueryDecisionResult, error)
}

// RulesFeed is the subset of *rulesfeed.Client the server depends on.
type RulesFeed interface {
	FetchRules(ctx context.Context, tableID string) (domain.GameRules, error)
}

// Server dispatches every operation over an orchestrator.Registry, with
// persistence and rulesfeed as optional side-effecting collaborators: a nil
// repo or feed simply disables the corresponding behaviour (audit trail,
// table_id rule lookup) rather than failing requests.
type Server struct {
	registry Registry
	repo     persistence.Repository
	feed     RulesFeed
}

// NewServer constructs a Server. repo and feed may be nil.
func NewServer(registry Registry, repo persistence.Repository, feed RulesFeed) *Server {
	return &Server{registry: registry, repo: repo, feed: feed}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "BAD_INPUT", "only POST is supported")
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/") {
	case "start_session":
		s.handleStartSession(w, r)
	case "end_session":
		s.handleEndSession(w, r)
	case "session_status":
		s.handleSessionStatus(w, r)
	case "shuffle":
		s.handleShuffle(w, r)
	case "deal":
		s.handleDeal(w, r)
	case "action":
		s.handleAction(w, r)
	case "observe":
		s.handleObserve(w, r)
	case "query_decision":
		s.handleQueryDecision(w, r)
	default:
		writeError(w, http.StatusNotFound, "BAD_INPUT", "unknown operation")
	}
}

type startSessionRequest struct {
	Mode     string            `json:"mode"`
	Bankroll float64           `json:"bankroll"`
	Rules    *domain.GameRules `json:"rules,omitempty"`
	TableID  string            `json:"table_id,omitempty"`
	Seed     *int64            `json:"seed,omitempty"`
}

type startSessionResponse struct {
	SessionID string  `json:"session_id"`
	Mode      string  `json:"mode"`
	Bankroll  float64 `json:"bankroll"`
	Status    string  `json:"status"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_INPUT", err.Error())
		return
	}

	gameRules, ok := s.resolveRules(w, r, req)
	if !ok {
		return
	}

	result, err := s.registry.StartSession(orchestrator.StartSessionInput{
		Mode:     mode,
		Bankroll: req.Bankroll,
		Rules:    gameRules,
		Seed:     req.Seed,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if s.repo != nil {
		_ = s.repo.UpsertSession(persistence.SessionRecord{
			SessionID: result.SessionID,
			Mode:      result.Mode,
			Rules:     gameRules,
			StartedAt: time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusOK, startSessionResponse{
		SessionID: result.SessionID,
		Mode:      string(result.Mode),
		Bankroll:  result.Bankroll,
		Status:    string(result.Status),
	})
}

// resolveRules implements start_session's "rules or table_id" input: an
// explicit rules object wins outright; otherwise, if a table_id is given
// and a rules feed is wired, it fetches the posted rules for that table.
// With neither, the engine's own defaults apply.
func (s *Server) resolveRules(w http.ResponseWriter, r *http.Request, req startSessionRequest) (domain.GameRules, bool) {
	if req.Rules != nil {
		if err := req.Rules.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_RULES", err.Error())
			return domain.GameRules{}, false
		}
		return *req.Rules, true
	}
	if req.TableID != "" {
		if s.feed == nil {
			writeError(w, http.StatusBadRequest, "BAD_RULES", "table_id given but no rules feed is configured")
			return domain.GameRules{}, false
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		fetched, err := s.feed.FetchRules(ctx, req.TableID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_RULES", err.Error())
			return domain.GameRules{}, false
		}
		return fetched, true
	}
	return domain.DefaultGameRules(), true
}

type sessionIDRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var finalStatus *session.StatusSnapshot
	if s.repo != nil {
		if status, err := s.registry.SessionStatus(req.SessionID); err == nil {
			finalStatus = &status
		}
	}

	if err := s.registry.EndSession(req.SessionID); err != nil {
		writeAPIError(w, err)
		return
	}

	if s.repo != nil && finalStatus != nil {
		if record, ok, err := s.repo.GetSession(req.SessionID); err == nil && ok {
			ended := time.Now().UTC()
			record.EndedAt = &ended
			record.Statistics.HandsPlayed = finalStatus.HandsPlayed
			_ = s.repo.UpsertSession(record)
		}
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

type sessionStatusResponse struct {
	Mode          string               `json:"mode"`
	State         string               `json:"state"`
	CountSnapshot domain.CountSnapshot `json:"count_snapshot"`
	Bankroll      float64              `json:"bankroll"`
	HandsPlayed   int                  `json:"hands_played"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := s.registry.SessionStatus(req.SessionID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStatusResponse{
		Mode:          string(status.Mode),
		State:         string(status.State),
		CountSnapshot: status.CountSnapshot,
		Bankroll:      status.Bankroll,
		HandsPlayed:   status.HandsPlayed,
	})
}

type shuffleResponse struct {
	CountSnapshot domain.CountSnapshot `json:"count_snapshot"`
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := s.registry.Shuffle(req.SessionID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shuffleResponse{CountSnapshot: snap})
}

type dealResponse struct {
	PlayerCards    []string             `json:"player_cards"`
	PlayerTotal    int                  `json:"player_total"`
	DealerUp       string               `json:"dealer_up"`
	IsBlackjack    bool                 `json:"is_blackjack"`
	CountSnapshot  domain.CountSnapshot `json:"count_snapshot"`
	RecommendedBet uint32               `json:"recommended_bet"`
}

func (s *Server) handleDeal(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.registry.Deal(req.SessionID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dealResponse{
		PlayerCards:    cardStrings(result.PlayerCards),
		PlayerTotal:    result.PlayerTotal,
		DealerUp:       result.DealerUp.String(),
		IsBlackjack:    result.IsBlackjack,
		CountSnapshot:  result.CountSnapshot,
		RecommendedBet: result.RecommendedBet,
	})
}

type actionRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
}

type actionResponse struct {
	ActionTaken   string               `json:"action_taken"`
	CorrectAction string               `json:"correct_action"`
	IsCorrect     bool                 `json:"is_correct"`
	NewCard       *string              `json:"new_card,omitempty"`
	NewTotal      *int                 `json:"new_total,omitempty"`
	Outcome       *string              `json:"outcome,omitempty"`
	DealerTotal   *int                 `json:"dealer_total,omitempty"`
	ShouldExit    bool                 `json:"should_exit"`
	ExitReason    string               `json:"exit_reason,omitempty"`
	CountSnapshot domain.CountSnapshot `json:"count_snapshot"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_INPUT", err.Error())
		return
	}

	result, err := s.registry.Act(req.SessionID, action)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp := actionResponse{
		ActionTaken:   string(result.ActionTaken),
		CorrectAction: string(result.CorrectAction),
		IsCorrect:     result.IsCorrect,
		ShouldExit:    result.ShouldExit,
		ExitReason:    result.ExitReason,
		CountSnapshot: result.CountSnapshot,
	}
	if result.NewCard != nil {
		c := result.NewCard.String()
		resp.NewCard = &c
	}
	resp.NewTotal = result.NewTotal
	if result.Outcome != nil {
		o := string(*result.Outcome)
		resp.Outcome = &o
	}
	resp.DealerTotal = result.DealerTotal

	writeJSON(w, http.StatusOK, resp)
}

type observeRequest struct {
	SessionID string   `json:"session_id"`
	Cards     []string `json:"cards"`
}

type observeResponse struct {
	CountSnapshot  domain.CountSnapshot `json:"count_snapshot"`
	RecommendedBet uint32               `json:"recommended_bet"`
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cards, ok := parseCards(w, req.Cards)
	if !ok {
		return
	}
	result, err := s.registry.Observe(req.SessionID, cards)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, observeResponse{CountSnapshot: result.CountSnapshot, RecommendedBet: result.RecommendedBet})
}

type queryDecisionRequest struct {
	SessionID   string   `json:"session_id"`
	PlayerCards []string `json:"player_cards"`
	DealerUp    string   `json:"dealer_up"`
}

type queryDecisionResponse struct {
	RecommendedAction string               `json:"recommended_action"`
	CountSnapshot     domain.CountSnapshot `json:"count_snapshot"`
	RecommendedBet    uint32               `json:"recommended_bet"`
	ShouldExit        bool                 `json:"should_exit"`
	ExitReason        string               `json:"exit_reason,omitempty"`
}

func (s *Server) handleQueryDecision(w http.ResponseWriter, r *http.Request) {
	var req queryDecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	playerCards, ok := parseCards(w, req.PlayerCards)
	if !ok {
		return
	}
	dealerUp, err := domain.ParseCard(req.DealerUp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_CARD", err.Error())
		return
	}

	result, err := s.registry.QueryDecision(req.SessionID, playerCards, dealerUp)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryDecisionResponse{
		RecommendedAction: string(result.RecommendedAction),
		CountSnapshot:     result.CountSnapshot,
		RecommendedBet:    result.RecommendedBet,
		ShouldExit:        result.ShouldExit,
		ExitReason:        result.ExitReason,
	})
}

func parseCards(w http.ResponseWriter, tokens []string) ([]domain.Card, bool) {
	cards := make([]domain.Card, 0, len(tokens))
	for _, token := range tokens {
		c, err := domain.ParseCard(token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_CARD", err.Error())
			return nil, false
		}
		cards = append(cards, c)
	}
	return cards, true
}

func cardStrings(cards []domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_INPUT", fmt.Sprintf("malformed request body: %v", err))
		return false
	}
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); err != io.EOF {
		writeError(w, http.StatusBadRequest, "BAD_INPUT", "request body has trailing data")
		return false
	}
	return true
}

func writeAPIError(w http.ResponseWriter, err error) {
	code := apierr.Code(err)
	status := http.StatusBadRequest
	switch code {
	case "SESSION_GONE":
		status = http.StatusNotFound
	case "SESSION_BUSY":
		status = http.StatusConflict
	}
	writeError(w, status, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
