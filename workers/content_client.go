package workers

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
	"strconv"
	"time"
)

// ContentRankingClient talks to the content service's ranking API. It
// implements services.ContentPromoter for the lottery spotlight side effect.
type ContentRankingClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewContentRankingClient() *ContentRankingClient {
	baseURL := os.Getenv("CONTENT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("CONTENT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("REWARD_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("REWARD_SERVICE_TOKEN environment variable is required for content ranking")
	}

	return &ContentRankingClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// TopContent returns the ids of a user's best-performing posts.
func (c *ContentRankingClient) TopContent(ctx context.Context, externalUserID string, limit int) ([]string, error) {
	u, err := url.Parse(c.BaseURL + "/api/v1/internal/content/top")
	if err != nil {
		return nil, fmt.Errorf("invalid content service URL: %w", err)
	}
	q := u.Query()
	q.Set("user_id", externalUserID)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("content service returned %d: %s", resp.StatusCode, string(msg))
	}

	var result struct {
		ContentIDs []string `json:"content_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode top-content response: %w", err)
	}
	return result.ContentIDs, nil
}

// Promote marks the given content as spotlighted for durationDays.
func (c *ContentRankingClient) Promote(ctx context.Context, contentIDs []string, durationDays int) error {
	body, err := json.Marshal(map[string]interface{}{
		"content_ids":   contentIDs,
		"duration_days": durationDays,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/internal/content/promote", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("promote request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("content service returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
