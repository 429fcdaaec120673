// services/reward_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"content-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChainMinter is the on-chain mint collaborator. Implementations must be
// synchronous-with-timeout; the engine never retries a mint on its own.
type ChainMinter interface {
	Mint(ctx context.Context, address string, amountBase int64) (txDigest string, err error)
}

// RewardStatus is the outcome of one reward computation.
type RewardStatus string

const (
	RewardSettled     RewardStatus = "settled"      // minted on-chain
	RewardPending     RewardStatus = "pending"      // accrued for EmailBasic user
	RewardNotEligible RewardStatus = "not_eligible" // anti-abuse gate; non-fatal
	RewardFailed      RewardStatus = "failed"       // mint or ledger write failed
)

// RewardResult is what handlers and the bounty/lottery engines consume.
type RewardResult struct {
	Status            RewardStatus `json:"status"`
	AmountBase        int64        `json:"amount_base"`
	TierWeight        float64      `json:"tier_weight"`
	Reason            string       `json:"reason,omitempty"`
	CooldownRemaining int64        `json:"cooldown_remaining_seconds,omitempty"`
	TxDigest          string       `json:"tx_digest,omitempty"`

	// MintCommitted is true once tokens exist on chain, even when a later
	// step failed. Callers must not retry a payout that already minted.
	MintCommitted bool `json:"mint_committed,omitempty"`
}

// RewardMeta carries optional per-award context.
type RewardMeta struct {
	// EngagerTier weights engagement-class actions by the tier of the user
	// who engaged. Falls back to the recipient's own tier when absent.
	EngagerTier *models.TrustTier
	// AmountBase overrides the policy base for direct payouts
	// (bounty_payout, lottery_prize). Zero means "use the policy base".
	AmountBase int64
	// Ref is a free-form reference stored on the event (bounty id, drawing id).
	Ref string
}

type RewardService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Minter   ChainMinter
	Policies map[models.RewardAction]RewardPolicy

	// AntiAbuse toggles the eligibility gate; direct payouts bypass it.
	AntiAbuse bool
}

func NewRewardService(db *gorm.DB, ledger *LedgerService, minter ChainMinter) *RewardService {
	return &RewardService{
		DB:        db,
		Ledger:    ledger,
		Minter:    minter,
		Policies:  DefaultRewardPolicies,
		AntiAbuse: true,
	}
}

// Award computes and settles a reward for one action. Eligibility failures
// come back as RewardNotEligible results, never errors — only missing users
// and infrastructure faults error out.
func (s *RewardService) Award(ctx context.Context, externalUserID string, action models.RewardAction, meta RewardMeta) (*RewardResult, error) {
	policy, ok := s.Policies[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown reward action %q", ErrValidation, action)
	}

	user, err := s.Ledger.GetUser(nil, externalUserID)
	if err != nil {
		return nil, err
	}

	directPayout := meta.AmountBase > 0
	if s.AntiAbuse && !directPayout {
		if res, err := s.checkEligibility(externalUserID, action, policy); err != nil {
			return nil, err
		} else if res != nil {
			return res, nil
		}
	}

	amountBase := policy.BaseAmountBase
	if directPayout {
		amountBase = meta.AmountBase
	}
	weight := 1.0
	if policy.Engagement {
		tier := user.TrustTier
		if meta.EngagerTier != nil {
			tier = *meta.EngagerTier
		}
		weight = tier.Weight()
		amountBase = int64(math.Round(float64(amountBase) * weight))
	}
	if amountBase <= 0 {
		return nil, fmt.Errorf("reward amount for %q resolved to zero", action)
	}

	if user.AccountTier == models.AccountTierWalletFull && user.WalletAddress != nil {
		return s.settleOnChain(ctx, user, action, amountBase, weight, meta)
	}
	return s.settlePending(user, action, amountBase, weight, meta)
}

// settleOnChain mints immediately, then mirrors the amount into the ledger so
// UI balance reads never need a live chain query.
func (s *RewardService) settleOnChain(ctx context.Context, user *models.User, action models.RewardAction, amountBase int64, weight float64, meta RewardMeta) (*RewardResult, error) {
	digest, err := s.Minter.Mint(ctx, *user.WalletAddress, amountBase)
	if err != nil {
		log.Printf("❌ [REWARD] Mint failed for %s (%s, %d base): %v", user.ExternalUserID, action, amountBase, err)
		return &RewardResult{Status: RewardFailed, AmountBase: amountBase, TierWeight: weight, Reason: err.Error()}, nil
	}

	if err := s.Ledger.Credit(nil, user.ExternalUserID, amountBase); err != nil {
		// The mint is irreversible; surface the mirror failure so the caller
		// knows the display balance is behind the chain until reconciled.
		log.Printf("❌ [REWARD] Ledger mirror failed after mint %s for %s: %v", digest, user.ExternalUserID, err)
		return &RewardResult{Status: RewardFailed, AmountBase: amountBase, TierWeight: weight, TxDigest: digest, MintCommitted: true, Reason: "ledger sync failed after mint"}, nil
	}

	s.logEvent(user.ExternalUserID, action, amountBase, weight, digest, meta.Ref)
	return &RewardResult{Status: RewardSettled, AmountBase: amountBase, TierWeight: weight, TxDigest: digest, MintCommitted: true}, nil
}

// settlePending appends an unsettled credit and still bumps the display
// balance so EmailBasic users watch their total accrue before a wallet link.
// Both writes share one transaction — no pending row without a credit.
func (s *RewardService) settlePending(user *models.User, action models.RewardAction, amountBase int64, weight float64, meta RewardMeta) (*RewardResult, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		pending := models.PendingReward{
			ID:             uuid.NewString(),
			ExternalUserID: user.ExternalUserID,
			Action:         action,
			AmountBase:     amountBase,
			Status:         models.PendingStatusPending,
		}
		if err := tx.Create(&pending).Error; err != nil {
			return err
		}
		return s.Ledger.Credit(tx, user.ExternalUserID, amountBase)
	})
	if err != nil {
		log.Printf("❌ [REWARD] Pending accrual failed for %s (%s): %v", user.ExternalUserID, action, err)
		return &RewardResult{Status: RewardFailed, AmountBase: amountBase, TierWeight: weight, Reason: "pending reward insert failed"}, nil
	}

	s.logEvent(user.ExternalUserID, action, amountBase, weight, "", meta.Ref)
	return &RewardResult{Status: RewardPending, AmountBase: amountBase, TierWeight: weight}, nil
}

// checkEligibility returns a NotEligible result when a gate trips, nil when
// the action may proceed. Pure read over the reward event log.
func (s *RewardService) checkEligibility(externalUserID string, action models.RewardAction, policy RewardPolicy) (*RewardResult, error) {
	if policy.CooldownSeconds == CooldownOnceEver {
		var count int64
		if err := s.DB.Model(&models.RewardEvent{}).
			Where("external_user_id = ? AND action = ?", externalUserID, action).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return &RewardResult{Status: RewardNotEligible, Reason: "this reward can only be earned once"}, nil
		}
	} else if policy.CooldownSeconds > 0 {
		var last models.RewardEvent
		err := s.DB.Where("external_user_id = ? AND action = ?", externalUserID, action).
			Order("created_at DESC").First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			elapsed := int64(time.Since(last.CreatedAt).Seconds())
			if remaining := policy.CooldownSeconds - elapsed; remaining > 0 {
				return &RewardResult{
					Status:            RewardNotEligible,
					Reason:            "action is on cooldown",
					CooldownRemaining: remaining,
				}, nil
			}
		}
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	if policy.DailyLimit > 0 {
		var todayCount int64
		if err := s.DB.Model(&models.RewardEvent{}).
			Where("external_user_id = ? AND action = ? AND created_at >= ?", externalUserID, action, dayStart).
			Count(&todayCount).Error; err != nil {
			return nil, err
		}
		if todayCount >= int64(policy.DailyLimit) {
			return &RewardResult{Status: RewardNotEligible, Reason: "daily limit reached for this action"}, nil
		}
	}

	var todayTotal int64
	if err := s.DB.Model(&models.RewardEvent{}).
		Where("external_user_id = ? AND created_at >= ?", externalUserID, dayStart).
		Select("COALESCE(SUM(amount_base), 0)").Scan(&todayTotal).Error; err != nil {
		return nil, err
	}
	if todayTotal >= DailyRewardCapBase {
		return &RewardResult{Status: RewardNotEligible, Reason: "daily reward cap reached"}, nil
	}

	return nil, nil
}

// logEvent appends to the reward audit log. Best-effort: a failed audit write
// must never block or roll back the payout it describes.
func (s *RewardService) logEvent(externalUserID string, action models.RewardAction, amountBase int64, weight float64, digest, ref string) {
	event := models.RewardEvent{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Action:         action,
		AmountBase:     amountBase,
		TierWeight:     weight,
		TxDigest:       digest,
	}
	if ref != "" {
		event.Metadata = fmt.Sprintf(`{"ref":%q}`, ref)
	}
	if err := s.DB.Create(&event).Error; err != nil {
		log.Printf("⚠️ [REWARD] Failed to log reward event for %s (%s): %v", externalUserID, action, err)
	}
}

// ClaimResult summarizes a batch pending-reward settlement.
type ClaimResult struct {
	ClaimedCount int    `json:"claimed_count"`
	TotalBase    int64  `json:"total_base"`
	TxDigest     string `json:"tx_digest"`
}

// ClaimPending settles every pending reward for a user in one batch: one mint
// for the sum, then all constituents flip to claimed with the shared digest
// inside a single transaction. Partial claims are not a valid outcome.
// The user is upgraded to WalletFull with the given address on success.
func (s *RewardService) ClaimPending(ctx context.Context, externalUserID, walletAddress string) (*ClaimResult, error) {
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: wallet address is required", ErrValidation)
	}
	if _, err := s.Ledger.GetUser(nil, externalUserID); err != nil {
		return nil, err
	}

	var pendings []models.PendingReward
	if err := s.DB.Where("external_user_id = ? AND status = ?", externalUserID, models.PendingStatusPending).
		Find(&pendings).Error; err != nil {
		return nil, err
	}
	if len(pendings) == 0 {
		return &ClaimResult{}, nil
	}

	var total int64
	ids := make([]string, 0, len(pendings))
	for _, p := range pendings {
		total += p.AmountBase
		ids = append(ids, p.ID)
	}

	digest, err := s.Minter.Mint(ctx, walletAddress, total)
	if err != nil {
		if dberr := s.DB.Model(&models.PendingReward{}).
			Where("id IN ?", ids).
			Update("status", models.PendingStatusFailed).Error; dberr != nil {
			log.Printf("⚠️ [CLAIM] Failed to mark pendings failed for %s: %v", externalUserID, dberr)
		}
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	now := time.Now()
	var claimed int64
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PendingReward{}).
			Where("id IN ? AND status = ?", ids, models.PendingStatusPending).
			Updates(map[string]interface{}{
				"status":     models.PendingStatusClaimed,
				"tx_digest":  digest,
				"claimed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		// The status guard can flip fewer rows than we loaded (a concurrent
		// expiry sweep, say); report what actually claimed.
		claimed = res.RowsAffected
		// The display balance already accrued at award time; the claim only
		// changes where the tokens live, so no extra credit here.
		return tx.Model(&models.User{}).
			Where("external_user_id = ?", externalUserID).
			Updates(map[string]interface{}{
				"account_tier":   models.AccountTierWalletFull,
				"wallet_address": walletAddress,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [CLAIM] %s claimed %d pending reward(s), %d base units, tx=%s", externalUserID, claimed, total, digest)
	return &ClaimResult{ClaimedCount: int(claimed), TotalBase: total, TxDigest: digest}, nil
}

// PendingFor lists a user's unsettled rewards, newest first.
func (s *RewardService) PendingFor(externalUserID string) ([]models.PendingReward, error) {
	var pendings []models.PendingReward
	err := s.DB.Where("external_user_id = ? AND status = ?", externalUserID, models.PendingStatusPending).
		Order("created_at DESC").Find(&pendings).Error
	return pendings, err
}

// History returns the user's reward events, newest first.
func (s *RewardService) History(externalUserID string, limit int) ([]models.RewardEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var events []models.RewardEvent
	err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// ExpireStalePending marks pendings older than ttl as expired. Run daily by
// the scheduler; expired rewards no longer count toward a claim batch.
func (s *RewardService) ExpireStalePending(ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)
	res := s.DB.Model(&models.PendingReward{}).
		Where("status = ? AND created_at < ?", models.PendingStatusPending, cutoff).
		Update("status", models.PendingStatusExpired)
	return res.RowsAffected, res.Error
}
