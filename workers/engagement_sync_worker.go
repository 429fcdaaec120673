// workers/engagement_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"content-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredProfile matches the JSON shape of the profile service's change feed.
type MirroredProfile struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	AccountTier   string    `json:"account_tier"`
	TrustTier     string    `json:"trust_tier"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []MirroredProfile `json:"users"`
}

// WeeklyScoreEntry is one row of the engagement aggregation feed.
type WeeklyScoreEntry struct {
	ExternalUserID string    `json:"external_user_id"`
	WeekStart      time.Time `json:"week_start"`
	Score          int64     `json:"score"`
}

type engagementResponse struct {
	Scores []WeeklyScoreEntry `json:"scores"`
}

// EngagementSyncWorker keeps two local mirrors fresh from the profile
// service: the users table (tiers, wallet addresses — settlement depends on
// them) and the weekly engagement_scores table the lottery reads.
type EngagementSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewEngagementSyncWorker(db *gorm.DB, profileServiceURL, serviceToken string) *EngagementSyncWorker {
	return &EngagementSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      profileServiceURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *EngagementSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting engagement sync worker (profile service → users, engagement_scores)…")
	go w.run(ctx)
}

func (w *EngagementSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	if err := w.syncProfiles(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}
	if err := w.syncScores(ctx); err != nil {
		log.Printf("⚠️ Initial score sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncProfiles(ctx, w.lastProfileSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
			if err := w.syncScores(ctx); err != nil {
				log.Printf("❌ Score sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Engagement sync worker stopped")
			return
		}
	}
}

// lastProfileSyncTime finds the most recent UpdatedAt in the local mirror.
func (w *EngagementSyncWorker) lastProfileSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

func (w *EngagementSyncWorker) fetch(ctx context.Context, path string, query url.Values, out interface{}) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(path)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", endpoint, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service non-200 response: %d — %s", resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// syncProfiles upserts changed users since the given time. Balance is never
// touched here — it belongs to the ledger, not the mirror.
func (w *EngagementSyncWorker) syncProfiles(ctx context.Context, since time.Time) error {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))

	var response profileChangesResponse
	if err := w.fetch(ctx, "/api/v1/public/profiles", q, &response); err != nil {
		return err
	}
	if len(response.Users) == 0 {
		return nil
	}
	log.Printf("[SYNC] 📥 Processing %d profile change(s)…", len(response.Users))

	var upserted, failed int
	for _, remote := range response.Users {
		local := models.User{
			ID:             uuid.NewString(),
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			Email:          remote.Email,
			AccountTier:    models.AccountTier(remote.AccountTier),
			TrustTier:      models.TrustTier(remote.TrustTier),
			WalletAddress:  remote.WalletAddress,
			IsActive:       remote.IsActive,
			CreatedAt:      remote.CreatedAt,
			UpdatedAt:      remote.UpdatedAt,
		}
		if !models.ValidTrustTier(remote.TrustTier) {
			local.TrustTier = models.TrustTierNew
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "account_tier", "trust_tier",
				"wallet_address", "is_active", "updated_at",
			}),
		}).Create(&local).Error; err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert user %q: %v", remote.ExternalID, err)
		} else {
			upserted++
		}
	}

	log.Printf("[SYNC] ✅ Profiles: %d upserted, %d failed", upserted, failed)
	return nil
}

// syncScores pulls the current week's engagement aggregation.
func (w *EngagementSyncWorker) syncScores(ctx context.Context) error {
	var response engagementResponse
	if err := w.fetch(ctx, "/api/v1/public/engagement/weekly", url.Values{}, &response); err != nil {
		return err
	}
	if len(response.Scores) == 0 {
		return nil
	}

	var failed int
	for _, entry := range response.Scores {
		score := models.EngagementScore{
			ID:             uuid.NewString(),
			ExternalUserID: entry.ExternalUserID,
			WeekStart:      entry.WeekStart.UTC(),
			Score:          entry.Score,
		}
		if err := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "week_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"score"}),
		}).Create(&score).Error; err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert score for %q: %v", entry.ExternalUserID, err)
		}
	}
	if failed > 0 {
		log.Printf("[SYNC] ⚠️ Scores: %d of %d failed", failed, len(response.Scores))
	}
	return nil
}
