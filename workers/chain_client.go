package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ChainMintClient talks to the wallet service that holds the BOCA treasury
// keys. It implements services.ChainMinter. Every call is synchronous with a
// timeout; the client never retries — double-pay protection lives with the
// callers' status guards, not here.
type ChainMintClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewChainMintClient() *ChainMintClient {
	baseURL := os.Getenv("WALLET_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("WALLET_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("REWARD_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("REWARD_SERVICE_TOKEN environment variable is required for minting")
	}

	return &ChainMintClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type mintRequest struct {
	Address    string `json:"address"`
	AmountBase int64  `json:"amount_base"`
}

type mintResponse struct {
	Success  bool   `json:"success"`
	TxDigest string `json:"tx_digest"`
	Error    string `json:"error,omitempty"`
}

// Mint asks the wallet service to mint amountBase to address and returns the
// transaction digest.
func (c *ChainMintClient) Mint(ctx context.Context, address string, amountBase int64) (string, error) {
	body, err := json.Marshal(mintRequest{Address: address, AmountBase: amountBase})
	if err != nil {
		return "", fmt.Errorf("failed to encode mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/internal/mint", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mint request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("wallet service returned %d: %s", resp.StatusCode, string(msg))
	}

	var result mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode mint response: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("mint rejected: %s", result.Error)
	}
	return result.TxDigest, nil
}
