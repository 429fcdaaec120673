// services/lottery_service.go
package services

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"content-reward-system/models"
	"content-reward-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentPromoter is the content-ranking collaborator that spotlights a
// lottery winner's posts for a fixed duration.
type ContentPromoter interface {
	TopContent(ctx context.Context, externalUserID string, limit int) ([]string, error)
	Promote(ctx context.Context, contentIDs []string, durationDays int) error
}

const (
	MinParticipants    = 5
	MaxParticipants    = 100
	MinEngagementScore = 10
	MaxTicketsPerUser  = 10
	SpotlightTopN      = 3
	SpotlightDays      = 7
)

// PrizeBaseByTier is the fixed payout per prize tier (1-indexed).
var PrizeBaseByTier = map[int]int64{
	1: utils.ToBaseUnits(10.0),
	2: utils.ToBaseUnits(5.0),
	3: utils.ToBaseUnits(2.5),
}

// DrawOutcome reports what a Draw call did.
type DrawOutcome struct {
	Status  string   `json:"status"` // completed | cancelled | already_completed
	Winners []string `json:"winners,omitempty"`
}

type LotteryService struct {
	DB       *gorm.DB
	Rewards  *RewardService
	Promoter ContentPromoter
}

func NewLotteryService(db *gorm.DB, rewards *RewardService, promoter ContentPromoter) *LotteryService {
	return &LotteryService{DB: db, Rewards: rewards, Promoter: promoter}
}

// WeekStart returns the UTC Monday 00:00 that opens the cycle containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	delta := (int(t.Weekday()) + 6) % 7 // Monday = 0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -delta)
}

// TicketCount is the diminishing-returns weighting: floor(sqrt(score))
// clamped to [0, MaxTicketsPerUser]. High engagement still pays, but a
// score-maximizing whale cannot own the pool.
func TicketCount(score int64) int {
	if score <= 0 {
		return 0
	}
	tickets := int(math.Floor(math.Sqrt(float64(score))))
	if tickets > MaxTicketsPerUser {
		return MaxTicketsPerUser
	}
	return tickets
}

// GetOrCreateCurrentDrawing lazily creates this week's drawing. The unique
// index on week_start resolves creation races first-writer-wins; losers fall
// through to the read.
func (s *LotteryService) GetOrCreateCurrentDrawing() (*models.LotteryDrawing, error) {
	weekStart := WeekStart(time.Now())
	drawing := models.LotteryDrawing{
		ID:        uuid.NewString(),
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 7),
		Status:    models.DrawingStatusOpen,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "week_start"}},
		DoNothing: true,
	}).Create(&drawing).Error; err != nil {
		return nil, err
	}

	var current models.LotteryDrawing
	if err := s.DB.Where("week_start = ?", weekStart).First(&current).Error; err != nil {
		return nil, err
	}
	return &current, nil
}

// ComputeEligibility rebuilds the drawing's entries from the engagement
// mirror: top-N WalletFull users at or above the score floor. Re-running it
// refreshes scores and tickets in place.
func (s *LotteryService) ComputeEligibility(drawing *models.LotteryDrawing) (int, error) {
	type scored struct {
		ExternalUserID string
		Score          int64
	}
	var rows []scored
	err := s.DB.Model(&models.EngagementScore{}).
		Select("engagement_scores.external_user_id, engagement_scores.score").
		Joins("JOIN users ON users.external_user_id = engagement_scores.external_user_id").
		Where("engagement_scores.week_start = ?", drawing.WeekStart).
		Where("engagement_scores.score >= ?", MinEngagementScore).
		Where("users.account_tier = ? AND users.is_active = ? AND users.deleted_at IS NULL",
			models.AccountTierWalletFull, true).
		Order("engagement_scores.score DESC").
		Limit(MaxParticipants).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	totalTickets := 0
	for _, row := range rows {
		entry := models.LotteryEntry{
			ID:             uuid.NewString(),
			DrawingID:      drawing.ID,
			ExternalUserID: row.ExternalUserID,
			Score:          row.Score,
			TicketCount:    TicketCount(row.Score),
		}
		totalTickets += entry.TicketCount
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "drawing_id"}, {Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "ticket_count"}),
		}).Create(&entry).Error; err != nil {
			return 0, err
		}
	}

	if err := s.DB.Model(&models.LotteryDrawing{}).
		Where("id = ?", drawing.ID).
		Updates(map[string]interface{}{
			"total_participants": len(rows),
			"total_tickets":      totalTickets,
		}).Error; err != nil {
		return 0, err
	}
	drawing.TotalParticipants = len(rows)
	drawing.TotalTickets = totalTickets
	return len(rows), nil
}

// Draw selects up to three distinct winners without replacement and pays the
// fixed prizes. Exactly-once: the open→completed CAS runs before any payout,
// so a concurrent draw of the same cycle loses cleanly.
func (s *LotteryService) Draw(ctx context.Context, drawingID string) (*DrawOutcome, error) {
	var drawing models.LotteryDrawing
	if err := s.DB.Where("id = ?", drawingID).First(&drawing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: drawing %s", ErrNotFound, drawingID)
		}
		return nil, err
	}
	if drawing.Status == models.DrawingStatusCompleted {
		return &DrawOutcome{Status: "already_completed"}, nil
	}
	if drawing.Status == models.DrawingStatusCancelled {
		return nil, fmt.Errorf("%w: drawing was cancelled", ErrInvalidState)
	}

	var entries []models.LotteryEntry
	if err := s.DB.Where("drawing_id = ? AND ticket_count > 0", drawing.ID).Find(&entries).Error; err != nil {
		return nil, err
	}

	if len(entries) < MinParticipants {
		res := s.DB.Model(&models.LotteryDrawing{}).
			Where("id = ? AND status = ?", drawing.ID, models.DrawingStatusOpen).
			Update("status", models.DrawingStatusCancelled)
		if res.Error != nil {
			return nil, res.Error
		}
		log.Printf("⚠️ [LOTTERY] Drawing %s cancelled: %d participant(s), need %d", drawing.ID, len(entries), MinParticipants)
		return &DrawOutcome{Status: "cancelled"}, nil
	}

	// Flat ticket pool: each user repeated ticketCount times.
	pool := make([]string, 0, drawing.TotalTickets)
	for _, entry := range entries {
		for i := 0; i < entry.TicketCount; i++ {
			pool = append(pool, entry.ExternalUserID)
		}
	}

	winners := make([]string, 0, 3)
	for tier := 1; tier <= 3 && len(pool) > 0; tier++ {
		idx, err := secureIntn(len(pool))
		if err != nil {
			return nil, fmt.Errorf("random draw failed: %w", err)
		}
		winner := pool[idx]
		winners = append(winners, winner)

		// Drop every ticket the winner holds, not just the drawn one, so one
		// user can never take two tiers in the same cycle.
		remaining := pool[:0]
		for _, ticket := range pool {
			if ticket != winner {
				remaining = append(remaining, ticket)
			}
		}
		pool = remaining
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.DrawingStatusCompleted,
		"completed_at": now,
	}
	cols := []string{"first_place_id", "second_place_id", "third_place_id"}
	for i, winner := range winners {
		updates[cols[i]] = winner
	}
	res := s.DB.Model(&models.LotteryDrawing{}).
		Where("id = ? AND status = ?", drawing.ID, models.DrawingStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &DrawOutcome{Status: "already_completed"}, nil
	}

	for i, winner := range winners {
		tier := i + 1
		if err := s.DB.Model(&models.LotteryEntry{}).
			Where("drawing_id = ? AND external_user_id = ?", drawing.ID, winner).
			Update("prize_tier", tier).Error; err != nil {
			log.Printf("⚠️ [LOTTERY] Failed to record prize tier for %s: %v", winner, err)
		}

		result, err := s.Rewards.Award(ctx, winner, models.ActionLotteryPrize,
			RewardMeta{AmountBase: PrizeBaseByTier[tier], Ref: drawing.ID})
		if err != nil {
			log.Printf("❌ [LOTTERY] Prize payout error for %s (tier %d): %v", winner, tier, err)
		} else if result.Status != RewardSettled && result.Status != RewardPending {
			log.Printf("❌ [LOTTERY] Prize payout for %s (tier %d) returned %s: %s", winner, tier, result.Status, result.Reason)
		}

		s.spotlight(ctx, winner)
	}

	log.Printf("✅ [LOTTERY] Drawing %s completed with %d winner(s)", drawing.ID, len(winners))
	return &DrawOutcome{Status: "completed", Winners: winners}, nil
}

// spotlight promotes the winner's top content. Best-effort side effect: a
// ranking-service hiccup never unwinds the prize.
func (s *LotteryService) spotlight(ctx context.Context, externalUserID string) {
	if s.Promoter == nil {
		return
	}
	contentIDs, err := s.Promoter.TopContent(ctx, externalUserID, SpotlightTopN)
	if err != nil {
		log.Printf("⚠️ [LOTTERY] Spotlight lookup failed for %s: %v", externalUserID, err)
		return
	}
	if len(contentIDs) == 0 {
		return
	}
	if err := s.Promoter.Promote(ctx, contentIDs, SpotlightDays); err != nil {
		log.Printf("⚠️ [LOTTERY] Spotlight promote failed for %s: %v", externalUserID, err)
	}
}

// Leaderboard returns the current week's top engagement scores.
func (s *LotteryService) Leaderboard(limit int) ([]models.EngagementScore, error) {
	if limit < 1 || limit > 100 {
		limit = 25
	}
	var scores []models.EngagementScore
	err := s.DB.Where("week_start = ?", WeekStart(time.Now())).
		Order("score DESC").Limit(limit).Find(&scores).Error
	return scores, err
}

// History returns past drawings, newest first.
func (s *LotteryService) History(limit int) ([]models.LotteryDrawing, error) {
	if limit < 1 || limit > 100 {
		limit = 12
	}
	var drawings []models.LotteryDrawing
	err := s.DB.Where("status <> ?", models.DrawingStatusOpen).
		Order("week_start DESC").Limit(limit).Find(&drawings).Error
	return drawings, err
}

// ResetWeek cancels the current cycle and clears its entries so a fresh
// drawing is lazily created. Operator-only escape hatch.
func (s *LotteryService) ResetWeek() error {
	drawing, err := s.GetOrCreateCurrentDrawing()
	if err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("drawing_id = ?", drawing.ID).Delete(&models.LotteryEntry{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.LotteryDrawing{}, "id = ?", drawing.ID).Error
	})
}

// secureIntn draws a uniform index in [0, n) from crypto/rand, using
// rejection sampling so non-power-of-two pool sizes stay unbiased.
func secureIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid bound %d", n)
	}
	max := uint64(n)
	limit := math.MaxUint64 - math.MaxUint64%max
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % max), nil
		}
	}
}
