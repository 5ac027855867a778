// chain/client.go
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client talks to the chain relay service over HTTP. The relay owns the
// contract wallets and signing keys; this service only names wallets and
// amounts. A short client timeout keeps a slow chain from ever blocking
// local settlement.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClientFromEnv builds a Client from CHAIN_RELAY_URL and
// CHAIN_SERVICE_TOKEN. When CHAIN_RELAY_URL is unset the mirror is
// disabled and every chain call is skipped.
func NewClientFromEnv() Mirror {
	baseURL := os.Getenv("CHAIN_RELAY_URL")
	if baseURL == "" {
		log.Println("⚠️  CHAIN_RELAY_URL not set, chain mirror disabled")
		return NewDisabled()
	}
	token := os.Getenv("CHAIN_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("CHAIN_SERVICE_TOKEN environment variable is required when CHAIN_RELAY_URL is set")
	}

	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) Disabled() bool { return false }

type txResponse struct {
	TxRef string `json:"tx_ref"`
	Ref   string `json:"ref"` // entity reference for create calls
}

// post sends one JSON request and decodes the relay's tx response. Any
// transport or non-2xx failure is wrapped in ErrUnavailable.
func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}) (txResponse, error) {
	var out txResponse

	u, err := url.JoinPath(c.BaseURL, path)
	if err != nil {
		return out, fmt.Errorf("%w: bad relay path %q: %v", ErrUnavailable, path, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("failed to encode relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return out, fmt.Errorf("%w: relay returned status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("%w: failed to decode relay response: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (c *Client) AwardTokens(ctx context.Context, wallet string, amount int64, reason string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/token/award", map[string]interface{}{
		"wallet": wallet, "amount": amount, "reason": reason,
	})
	return resp.TxRef, err
}

func (c *Client) SpendTokens(ctx context.Context, wallet string, amount int64, purpose string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/token/spend", map[string]interface{}{
		"wallet": wallet, "amount": amount, "purpose": purpose,
	})
	return resp.TxRef, err
}

func (c *Client) BalanceOf(ctx context.Context, wallet string) (int64, error) {
	u, err := url.JoinPath(c.BaseURL, "/api/v1/token/balance")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	u += "?wallet=" + url.QueryEscape(wallet)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: relay returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: failed to decode balance response: %v", ErrUnavailable, err)
	}
	return out.Balance, nil
}

func (c *Client) CreateTask(ctx context.Context, wallet, title string, reward int64) (string, error) {
	resp, err := c.post(ctx, "/api/v1/tasks", map[string]interface{}{
		"assignee_wallet": wallet, "title": title, "reward": reward,
	})
	return resp.Ref, err
}

func (c *Client) CompleteTask(ctx context.Context, taskRef, wallet string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/tasks/complete", map[string]interface{}{
		"task_ref": taskRef, "wallet": wallet,
	})
	return resp.TxRef, err
}

func (c *Client) CreateChallenge(ctx context.Context, challengerWallet, opponentWallet string, stake int64, durationSecs int64) (string, error) {
	resp, err := c.post(ctx, "/api/v1/h2h", map[string]interface{}{
		"challenger_wallet": challengerWallet,
		"opponent_wallet":   opponentWallet,
		"stake":             stake,
		"duration_seconds":  durationSecs,
	})
	return resp.Ref, err
}

func (c *Client) AcceptChallenge(ctx context.Context, challengeRef, opponentWallet string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/h2h/accept", map[string]interface{}{
		"challenge_ref": challengeRef, "wallet": opponentWallet,
	})
	return resp.TxRef, err
}

func (c *Client) FinalizeChallenge(ctx context.Context, challengeRef, winnerWallet string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/h2h/finalize", map[string]interface{}{
		"challenge_ref": challengeRef, "winner_wallet": winnerWallet,
	})
	return resp.TxRef, err
}

func (c *Client) CreateLeague(ctx context.Context, name string, tier, maxMembers int, durationSecs int64) (string, error) {
	resp, err := c.post(ctx, "/api/v1/leagues", map[string]interface{}{
		"name": name, "tier": tier, "max_members": maxMembers, "duration_seconds": durationSecs,
	})
	return resp.Ref, err
}

func (c *Client) JoinLeague(ctx context.Context, leagueRef, wallet string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/leagues/join", map[string]interface{}{
		"league_ref": leagueRef, "wallet": wallet,
	})
	return resp.TxRef, err
}

func (c *Client) IssueTicket(ctx context.Context, wallet, reason string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/lottery/tickets", map[string]interface{}{
		"wallet": wallet, "reason": reason,
	})
	return resp.TxRef, err
}

func (c *Client) DrawLottery(ctx context.Context, winnerWallet string) (string, error) {
	resp, err := c.post(ctx, "/api/v1/lottery/draw", map[string]interface{}{
		"winner_wallet": winnerWallet,
	})
	return resp.TxRef, err
}
