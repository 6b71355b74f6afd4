package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/orchestrator"
	"github.com/edgecount/blackjack-engine/internal/persistence"
	"github.com/edgecount/blackjack-engine/internal/rules"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	table, err := rules.LoadStrategyTable()
	if err != nil {
		t.Fatalf("LoadStrategyTable failed: %v", err)
	}
	seed := int64(0)
	registry := orchestrator.NewRegistry(table, func() int64 { seed++; return seed })
	srv := NewServer(registry, persistence.NewInMemoryRepository(), nil)
	return httptest.NewServer(srv), srv
}

func postJSON(t *testing.T, server *httptest.Server, path string, body any, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(server.URL+"/"+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", path, err)
		}
	}
	return resp
}

func TestServer_StartSessionDealAndAct(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	var started startSessionResponse
	resp := postJSON(t, server, "start_session", startSessionRequest{Mode: "AUTO", Bankroll: 1000}, &started)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start_session status = %d", resp.StatusCode)
	}
	if started.SessionID == "" {
		t.Fatal("expected non-empty session id")
	}

	var dealt dealResponse
	resp = postJSON(t, server, "deal", sessionIDRequest{SessionID: started.SessionID}, &dealt)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deal status = %d", resp.StatusCode)
	}
	if len(dealt.PlayerCards) != 2 {
		t.Fatalf("expected 2 player cards, got %d", len(dealt.PlayerCards))
	}

	if !dealt.IsBlackjack {
		var acted actionResponse
		resp = postJSON(t, server, "action", actionRequest{SessionID: started.SessionID, Action: "STAND"}, &acted)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("action status = %d", resp.StatusCode)
		}
		if acted.ActionTaken != "STAND" {
			t.Fatalf("expected action_taken STAND, got %q", acted.ActionTaken)
		}
		if acted.Outcome == nil {
			t.Fatal("expected outcome to be populated once STAND settles the round")
		}
		if acted.DealerTotal == nil {
			t.Fatal("expected dealer_total to be populated once the dealer plays")
		}
	}
}

func TestServer_StartSessionRejectsBadRules(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	badRules := domain.DefaultGameRules()
	badRules.NumDecks = 0

	var errResp errorResponse
	resp := postJSON(t, server, "start_session", startSessionRequest{Mode: "AUTO", Bankroll: 1000, Rules: &badRules}, &errResp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if errResp.Error != "BAD_RULES" {
		t.Fatalf("expected BAD_RULES, got %q", errResp.Error)
	}
}

func TestServer_UnknownSessionReturnsSessionGone(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	var errResp errorResponse
	resp := postJSON(t, server, "session_status", sessionIDRequest{SessionID: "does-not-exist"}, &errResp)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if errResp.Error != "SESSION_GONE" {
		t.Fatalf("expected SESSION_GONE, got %q", errResp.Error)
	}
}

func TestServer_ManualModeObserveAndQueryDecision(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	var started startSessionResponse
	postJSON(t, server, "start_session", startSessionRequest{Mode: "MANUAL", Bankroll: 1000}, &started)

	var observed observeResponse
	resp := postJSON(t, server, "observe", observeRequest{SessionID: started.SessionID, Cards: []string{"5s", "6h"}}, &observed)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("observe status = %d", resp.StatusCode)
	}
	if observed.CountSnapshot.CardsDealt != 2 {
		t.Fatalf("expected 2 cards dealt, got %d", observed.CountSnapshot.CardsDealt)
	}

	var decision queryDecisionResponse
	resp = postJSON(t, server, "query_decision", queryDecisionRequest{
		SessionID:   started.SessionID,
		PlayerCards: []string{"Ts", "6h"},
		DealerUp:    "7c",
	}, &decision)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query_decision status = %d", resp.StatusCode)
	}
	if decision.RecommendedAction != "HIT" {
		t.Fatalf("expected HIT, got %q", decision.RecommendedAction)
	}
}

func TestServer_RejectsMalformedBody(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/start_session", "application/json", bytes.NewReader([]byte("{not-json")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_RejectsTrailingData(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/start_session", "application/json",
		bytes.NewReader([]byte(`{"mode":"AUTO","bankroll":1000}{"extra":true}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_UnknownOperationReturns404(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/not_a_real_operation", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
