// services/bounty_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"content-reward-system/models"
	"content-reward-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// MinStakeBase is the smallest stake that can open a bounty (1 BOCA).
	MinStakeBase int64 = 1 * utils.BaseUnitsPerDisplay
	// MinTipBase is the smallest post-award tip (0.1 BOCA).
	MinTipBase int64 = utils.BaseUnitsPerDisplay / 10
	// DefaultPlatformFeePercent of the stake is burned on award.
	DefaultPlatformFeePercent = 10
	// MaxBountyDuration bounds how far out an expiry may be set.
	MaxBountyDuration = 30 * 24 * time.Hour
)

// BountyService runs the escrow state machine: stake in, submissions gathered,
// then exactly one of award / refund / cancel releases the stake.
type BountyService struct {
	DB         *gorm.DB
	Ledger     *LedgerService
	Rewards    *RewardService
	FeePercent int
}

func NewBountyService(db *gorm.DB, ledger *LedgerService, rewards *RewardService) *BountyService {
	return &BountyService{DB: db, Ledger: ledger, Rewards: rewards, FeePercent: DefaultPlatformFeePercent}
}

// Create debits the stake and opens the bounty. Escrow and request creation
// are two steps with a compensating credit, not one transaction — the ledger
// may live in different storage than the bounty table.
func (s *BountyService) Create(creatorID, title, description string, stakeBase int64, expiresAt time.Time) (*models.BountyRequest, error) {
	if stakeBase < MinStakeBase {
		return nil, fmt.Errorf("%w: stake must be at least %.1f BOCA", ErrValidation, utils.ToDisplayUnits(MinStakeBase))
	}
	now := time.Now()
	if !expiresAt.After(now) || expiresAt.After(now.Add(MaxBountyDuration)) {
		return nil, fmt.Errorf("%w: expiry must be in the future and within %d days", ErrValidation, int(MaxBountyDuration.Hours()/24))
	}

	if err := s.Ledger.Debit(nil, creatorID, stakeBase); err != nil {
		return nil, err
	}

	bounty := &models.BountyRequest{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		StakeBase:   stakeBase,
		Status:      models.BountyStatusOpen,
		ExpiresAt:   expiresAt,
	}
	if err := s.DB.Create(bounty).Error; err != nil {
		// Stake already left the ledger — give it back before surfacing.
		if cerr := s.Ledger.Credit(nil, creatorID, stakeBase); cerr != nil {
			log.Printf("❌ [BOUNTY] Compensating credit failed for %s after create error: %v", creatorID, cerr)
		}
		return nil, fmt.Errorf("failed to create bounty: %w", err)
	}

	s.logTx(bounty.ID, models.BountyTxStake, creatorID, "", stakeBase)
	log.Printf("✅ [BOUNTY] %s staked %.2f BOCA on bounty %s", creatorID, utils.ToDisplayUnits(stakeBase), bounty.ID)
	return bounty, nil
}

// Submit adds a responder's recommendation. Duplicate checks run here and are
// backed by unique indexes, so a race between check and insert still loses.
func (s *BountyService) Submit(bountyID, responderID, restaurantID, rationale string) (*models.BountySubmission, error) {
	if restaurantID == "" {
		return nil, fmt.Errorf("%w: restaurant reference is required", ErrValidation)
	}
	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return nil, err
	}
	s.lazyExpire(bounty)

	if bounty.Status != models.BountyStatusOpen {
		return nil, fmt.Errorf("%w: bounty is %s", ErrInvalidState, bounty.Status)
	}
	if bounty.CreatorID == responderID {
		return nil, fmt.Errorf("%w: cannot respond to your own bounty", ErrForbidden)
	}

	var dup int64
	if err := s.DB.Model(&models.BountySubmission{}).
		Where("bounty_id = ? AND (responder_id = ? OR restaurant_id = ?)", bountyID, responderID, restaurantID).
		Count(&dup).Error; err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, fmt.Errorf("%w: responder or restaurant already submitted on this bounty", ErrConflict)
	}

	submission := &models.BountySubmission{
		ID:           uuid.NewString(),
		BountyID:     bountyID,
		ResponderID:  responderID,
		RestaurantID: restaurantID,
		Rationale:    rationale,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(submission).Error; err != nil {
			return err
		}
		return tx.Model(&models.BountyRequest{}).
			Where("id = ?", bountyID).
			Update("response_count", gorm.Expr("response_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: responder or restaurant already submitted on this bounty", ErrConflict)
		}
		return nil, err
	}
	return submission, nil
}

// Award pays the earliest submission naming the winning entity: "restaurant
// wins, first responder paid". Not retry-idempotent on purpose — a second
// call fails with ErrAlreadyAwarded instead of paying twice.
func (s *BountyService) Award(ctx context.Context, bountyID, callerID, winningEntityID string) (*models.BountySubmission, error) {
	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.CreatorID != callerID {
		return nil, fmt.Errorf("%w: only the creator can award", ErrForbidden)
	}
	if bounty.AwardedRespID != nil || bounty.Status == models.BountyStatusClosed {
		return nil, ErrAlreadyAwarded
	}
	if bounty.Status != models.BountyStatusOpen && bounty.Status != models.BountyStatusExpired {
		return nil, fmt.Errorf("%w: bounty is %s", ErrInvalidState, bounty.Status)
	}

	// First responder wins: earliest submission for the entity, regardless of
	// how many others recommended the same place later.
	var winner models.BountySubmission
	err = s.DB.Where("bounty_id = ? AND restaurant_id = ?", bountyID, winningEntityID).
		Order("created_at ASC").First(&winner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no submission recommends that restaurant", ErrNotFound)
		}
		return nil, err
	}

	prizeBase := bounty.StakeBase * int64(100-s.FeePercent) / 100
	burnBase := bounty.StakeBase - prizeBase
	prevStatus := bounty.Status
	now := time.Now()

	// Claim the award with a status CAS so two concurrent awards cannot both
	// pass — the loser sees zero rows affected.
	res := s.DB.Model(&models.BountyRequest{}).
		Where("id = ? AND status IN ? AND awarded_resp_id IS NULL",
			bountyID, []models.BountyStatus{models.BountyStatusOpen, models.BountyStatusExpired}).
		Updates(map[string]interface{}{
			"status":          models.BountyStatusClosed,
			"awarded_resp_id": winner.ID,
			"awarded_at":      now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyAwarded
	}

	result, err := s.Rewards.Award(ctx, winner.ResponderID, models.ActionBountyPayout,
		RewardMeta{AmountBase: prizeBase, Ref: bountyID})
	if err != nil || (result.Status == RewardFailed && !result.MintCommitted) {
		// No tokens moved. Put the bounty back exactly as it was so the
		// creator can retry without risking a second payout.
		if rerr := s.DB.Model(&models.BountyRequest{}).
			Where("id = ?", bountyID).
			Updates(map[string]interface{}{
				"status":          prevStatus,
				"awarded_resp_id": nil,
				"awarded_at":      nil,
			}).Error; rerr != nil {
			log.Printf("❌ [BOUNTY] Failed to roll back award claim on %s: %v", bountyID, rerr)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, result.Reason)
	}
	if result.Status == RewardFailed && result.MintCommitted {
		// The mint went through; only the ledger mirror is behind. The bounty
		// stays closed — rolling back here would let a retry mint twice.
		log.Printf("⚠️ [BOUNTY] Prize for %s minted (tx=%s) but ledger mirror lagging: %s",
			bountyID, result.TxDigest, result.Reason)
	}

	if err := s.DB.Model(&models.BountySubmission{}).
		Where("id = ?", winner.ID).Update("is_winner", true).Error; err != nil {
		log.Printf("⚠️ [BOUNTY] Failed to flag winning submission %s: %v", winner.ID, err)
	}
	winner.IsWinner = true

	s.logTx(bountyID, models.BountyTxAward, bounty.CreatorID, winner.ResponderID, prizeBase)
	s.logTx(bountyID, models.BountyTxBurn, bounty.CreatorID, "", burnBase)
	log.Printf("✅ [BOUNTY] %s awarded: %.2f BOCA to %s, %.2f burned",
		bountyID, utils.ToDisplayUnits(prizeBase), winner.ResponderID, utils.ToDisplayUnits(burnBase))
	return &winner, nil
}

// Refund returns the full stake after expiry, but only when nobody responded —
// a bounty with responses must go through Award. Idempotent in effect: the
// status CAS makes a second refund fail instead of paying twice.
func (s *BountyService) Refund(bountyID, callerID string) error {
	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return err
	}
	if bounty.CreatorID != callerID {
		return fmt.Errorf("%w: only the creator can refund", ErrForbidden)
	}
	s.lazyExpire(bounty)

	if bounty.Status != models.BountyStatusExpired {
		return fmt.Errorf("%w: bounty is not expired", ErrInvalidState)
	}
	if bounty.ResponseCount != 0 {
		return fmt.Errorf("%w: bounty has responses, award instead", ErrInvalidState)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BountyRequest{}).
			Where("id = ? AND status = ?", bountyID, models.BountyStatusExpired).
			Update("status", models.BountyStatusRefunded)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: bounty already settled", ErrInvalidState)
		}
		return s.Ledger.Credit(tx, bounty.CreatorID, bounty.StakeBase)
	})
	if err != nil {
		return err
	}

	s.logTx(bountyID, models.BountyTxRefund, "", bounty.CreatorID, bounty.StakeBase)
	log.Printf("✅ [BOUNTY] %s refunded %.2f BOCA to %s", bountyID, utils.ToDisplayUnits(bounty.StakeBase), bounty.CreatorID)
	return nil
}

// Cancel closes a still-open, zero-response bounty and returns the stake.
func (s *BountyService) Cancel(bountyID, callerID string) error {
	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return err
	}
	if bounty.CreatorID != callerID {
		return fmt.Errorf("%w: only the creator can cancel", ErrForbidden)
	}
	s.lazyExpire(bounty)

	if bounty.Status != models.BountyStatusOpen {
		return fmt.Errorf("%w: bounty is %s", ErrInvalidState, bounty.Status)
	}
	if bounty.ResponseCount != 0 {
		return fmt.Errorf("%w: bounty has responses", ErrInvalidState)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BountyRequest{}).
			Where("id = ? AND status = ? AND response_count = 0", bountyID, models.BountyStatusOpen).
			Update("status", models.BountyStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: bounty already settled or received a response", ErrInvalidState)
		}
		return s.Ledger.Credit(tx, bounty.CreatorID, bounty.StakeBase)
	})
	if err != nil {
		return err
	}

	s.logTx(bountyID, models.BountyTxCancel, "", bounty.CreatorID, bounty.StakeBase)
	return nil
}

// Tip moves extra thanks from creator to a responder after award, 1:1 with no
// platform fee — the fee only applies to the escrowed prize.
func (s *BountyService) Tip(bountyID, callerID, responseID string, amountBase int64) error {
	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return err
	}
	if bounty.CreatorID != callerID {
		return fmt.Errorf("%w: only the creator can tip", ErrForbidden)
	}
	if bounty.Status != models.BountyStatusClosed {
		return fmt.Errorf("%w: bounty has not been awarded yet", ErrInvalidState)
	}
	if amountBase < MinTipBase {
		return fmt.Errorf("%w: tip must be at least %.1f BOCA", ErrValidation, utils.ToDisplayUnits(MinTipBase))
	}

	var submission models.BountySubmission
	if err := s.DB.Where("id = ? AND bounty_id = ?", responseID, bountyID).First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: response does not belong to this bounty", ErrInvalidState)
		}
		return err
	}

	if err := s.Ledger.Transfer(callerID, submission.ResponderID, amountBase); err != nil {
		return err
	}

	s.logTx(bountyID, models.BountyTxTip, callerID, submission.ResponderID, amountBase)
	log.Printf("✅ [BOUNTY] %s tipped %.2f BOCA to %s on %s", callerID, utils.ToDisplayUnits(amountBase), submission.ResponderID, bountyID)
	return nil
}

// List returns bounties, optionally filtered by status, newest first.
func (s *BountyService) List(status string, page, size int) ([]models.BountyRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	query := s.DB.Model(&models.BountyRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var bounties []models.BountyRequest
	err := query.Order("created_at DESC").Limit(size).Offset((page - 1) * size).Find(&bounties).Error
	return bounties, total, err
}

// Get returns one bounty with its submissions, applying lazy expiry so
// readers never see an open bounty that is past its deadline.
func (s *BountyService) Get(bountyID string) (*models.BountyRequest, error) {
	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return nil, err
	}
	s.lazyExpire(bounty)
	var submissions []models.BountySubmission
	if err := s.DB.Where("bounty_id = ?", bountyID).Order("created_at ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	bounty.Submissions = submissions
	return bounty, nil
}

func (s *BountyService) getBounty(bountyID string) (*models.BountyRequest, error) {
	var bounty models.BountyRequest
	if err := s.DB.Where("id = ?", bountyID).First(&bounty).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: bounty %s", ErrNotFound, bountyID)
		}
		return nil, err
	}
	return &bounty, nil
}

// lazyExpire transitions an overdue open bounty to expired. The CAS makes the
// transition race-safe; if another writer got there first we re-read.
func (s *BountyService) lazyExpire(bounty *models.BountyRequest) {
	if bounty.Status != models.BountyStatusOpen || time.Now().Before(bounty.ExpiresAt) {
		return
	}
	res := s.DB.Model(&models.BountyRequest{}).
		Where("id = ? AND status = ?", bounty.ID, models.BountyStatusOpen).
		Update("status", models.BountyStatusExpired)
	if res.Error != nil {
		log.Printf("⚠️ [BOUNTY] Lazy expiry failed for %s: %v", bounty.ID, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		bounty.Status = models.BountyStatusExpired
		return
	}
	if current, err := s.getBounty(bounty.ID); err == nil {
		bounty.Status = current.Status
		bounty.AwardedRespID = current.AwardedRespID
	}
}

// logTx appends to the escrow audit trail. Best-effort: audit failure never
// blocks the token movement it records.
func (s *BountyService) logTx(bountyID string, txType models.BountyTxType, fromID, toID string, amountBase int64) {
	entry := models.BountyTransaction{
		ID:         uuid.NewString(),
		BountyID:   bountyID,
		Type:       txType,
		FromUserID: fromID,
		ToUserID:   toID,
		AmountBase: amountBase,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		log.Printf("⚠️ [BOUNTY] Failed to log %s transaction for %s: %v", txType, bountyID, err)
	}
}
