// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"content-reward-system/models"

	"github.com/go-co-op/gocron/v2"
)

// PendingRewardTTL is how long an unclaimed pending reward survives before
// the sweep marks it expired.
const PendingRewardTTL = 90 * 24 * time.Hour

// StartDrawScheduler runs the weekly lottery close and the daily
// pending-reward sweep in the background.
func (s *LotteryService) StartDrawScheduler(rewards *RewardService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 15 minutes: close any drawing whose window has ended. The status
	// CAS inside Draw keeps this safe even with multiple instances running.
	_, _ = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(func() {
			var due []models.LotteryDrawing
			now := time.Now().UTC()
			err := s.DB.Where("status = ? AND week_end <= ?", models.DrawingStatusOpen, now).
				Find(&due).Error
			if err != nil {
				log.Printf("[Scheduler] DB error listing due drawings: %v", err)
				return
			}

			for _, drawing := range due {
				if _, err := s.ComputeEligibility(&drawing); err != nil {
					log.Printf("[Scheduler] Eligibility failed for drawing %s: %v", drawing.ID, err)
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				outcome, err := s.Draw(ctx, drawing.ID)
				cancel()
				if err != nil {
					log.Printf("[Scheduler] Draw failed for drawing %s: %v", drawing.ID, err)
					continue
				}
				log.Printf("✅ Weekly drawing %s closed: %s", drawing.ID, outcome.Status)
			}
		}),
	)

	// Daily: expire stale pending rewards.
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			expired, err := rewards.ExpireStalePending(PendingRewardTTL)
			if err != nil {
				log.Printf("[Scheduler] Pending sweep failed: %v", err)
				return
			}
			if expired > 0 {
				log.Printf("✅ Expired %d stale pending reward(s)", expired)
			}
		}),
	)
}
