// Package rulesfeed is the optional HTTP collaborator start_session calls
// out to when a caller supplies a table_id instead of an explicit rules
// object: it fetches the house rules an operator currently has posted for
// that table. A deterministic engine never needs to ask anyone what to do
// mid-hand, so unlike the teacher's per-decision agent call, this is a
// single lookup made once, before a session is created.
package rulesfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/edgecount/blackjack-engine/internal/domain"
)

const (
	ProtocolVersion      = 1
	defaultTimeout       = 2 * time.Second
	maxResponseBodyBytes = 1 << 20
)

var (
	ErrEndpointNotConfigured = errors.New("rules feed endpoint not configured")
	ErrRequestTimeout        = errors.New("rules feed request timeout")
	ErrNetwork               = errors.New("rules feed network error")
	ErrMalformedResponse     = errors.New("rules feed response malformed")
	ErrTableNotFound         = errors.New("rules feed has no rules posted for table")
)

// Client fetches GameRules from an operator-run table-management feed.
type Client struct {
	httpClient  *http.Client
	endpointURL string
}

type protocolRequest struct {
	ProtocolVersion int    `json:"protocol_version"`
	TableID         string `json:"table_id"`
}

type protocolResponse struct {
	Found bool              `json:"found"`
	Rules domain.GameRules `json:"rules"`
}

// New constructs a Client posting against endpointURL with the given
// per-request timeout. A non-positive timeout falls back to 2 seconds, the
// same default the teacher's agent client uses.
func New(endpointURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Client{httpClient: &http.Client{Timeout: timeout}, endpointURL: strings.TrimSpace(endpointURL)}
}

// FetchRules asks the feed for the rules currently posted for tableID.
func (c Client) FetchRules(ctx context.Context, tableID string) (domain.GameRules, error) {
	if c.endpointURL == "" {
		return domain.GameRules{}, ErrEndpointNotConfigured
	}
	if c.httpClient == nil {
		c = New(c.endpointURL, defaultTimeout)
	}
	if strings.TrimSpace(tableID) == "" {
		return domain.GameRules{}, fmt.Errorf("%w: table_id is required", ErrMalformedResponse)
	}

	body, err := json.Marshal(protocolRequest{ProtocolVersion: ProtocolVersion, TableID: tableID})
	if err != nil {
		return domain.GameRules{}, fmt.Errorf("%w: marshal request: %v", ErrMalformedResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return domain.GameRules{}, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeoutError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.GameRules{}, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		return domain.GameRules{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.GameRules{}, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	limitedBody := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
	decoder := json.NewDecoder(limitedBody)

	var dto protocolResponse
	if err := decoder.Decode(&dto); err != nil {
		return domain.GameRules{}, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); err != io.EOF {
		return domain.GameRules{}, fmt.Errorf("%w: response body has trailing data", ErrMalformedResponse)
	}

	if !dto.Found {
		return domain.GameRules{}, fmt.Errorf("%w: table %q", ErrTableNotFound, tableID)
	}
	if err := dto.Rules.Validate(); err != nil {
		return domain.GameRules{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return dto.Rules, nil
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
