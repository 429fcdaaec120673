package models

import (
	"time"
)

// RewardAction names every rewardable action on the platform.
type RewardAction string

const (
	// Engagement class — tier-weighted by the engager's trust tier.
	ActionReceivedUpvote     RewardAction = "received_upvote"
	ActionReceivedSave       RewardAction = "received_save"
	ActionReceivedComment    RewardAction = "received_comment"
	ActionReshareAttribution RewardAction = "reshare_attribution"
	ActionGivenUpvote        RewardAction = "given_upvote"

	// Flat class — base amount regardless of tier.
	ActionPostCreated        RewardAction = "post_created"
	ActionDailyLogin         RewardAction = "daily_login"
	ActionReferralBonus      RewardAction = "referral_bonus"
	ActionWalletLinked       RewardAction = "wallet_linked"
	ActionFirstPostMilestone RewardAction = "first_post_milestone"
	ActionBountyPayout       RewardAction = "bounty_payout"
	ActionLotteryPrize       RewardAction = "lottery_prize"
)

// ValidRewardAction reports whether s names a known reward action.
func ValidRewardAction(s string) bool {
	switch RewardAction(s) {
	case ActionReceivedUpvote, ActionReceivedSave, ActionReceivedComment,
		ActionReshareAttribution, ActionGivenUpvote,
		ActionPostCreated, ActionDailyLogin, ActionReferralBonus,
		ActionWalletLinked, ActionFirstPostMilestone,
		ActionBountyPayout, ActionLotteryPrize:
		return true
	}
	return false
}

// PendingRewardStatus tracks an unsettled credit for an EmailBasic user.
type PendingRewardStatus string

const (
	PendingStatusPending PendingRewardStatus = "pending"
	PendingStatusClaimed PendingRewardStatus = "claimed"
	PendingStatusFailed  PendingRewardStatus = "failed"
	PendingStatusExpired PendingRewardStatus = "expired"
)

// PendingReward is a reward that could not settle on-chain because the user
// has no wallet yet. A wallet upgrade converts all of a user's pendings in
// one atomic batch (ClaimPending).
type PendingReward struct {
	ID             string              `gorm:"primaryKey" json:"id"`
	ExternalUserID string              `gorm:"index;not null" json:"external_user_id"`
	Action         RewardAction        `gorm:"type:varchar(32);not null" json:"action"`
	AmountBase     int64               `gorm:"not null" json:"amount_base"`
	Status         PendingRewardStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TxDigest       string              `gorm:"type:varchar(128)" json:"tx_digest,omitempty"`
	ClaimedAt      *time.Time          `json:"claimed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
}

// RewardEvent is the append-only log of every reward computation. It doubles
// as the anti-abuse source of truth: cooldowns, once-ever checks and daily
// caps are all answered from this table.
type RewardEvent struct {
	ID             string       `gorm:"primaryKey" json:"id"`
	ExternalUserID string       `gorm:"index:idx_reward_user_action;not null" json:"external_user_id"`
	Action         RewardAction `gorm:"index:idx_reward_user_action;type:varchar(32);not null" json:"action"`
	AmountBase     int64        `gorm:"not null" json:"amount_base"`
	TierWeight     float64      `gorm:"not null;default:1" json:"tier_weight"`
	TxDigest       string       `gorm:"type:varchar(128)" json:"tx_digest,omitempty"`
	Metadata       string       `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time    `json:"created_at" gorm:"autoCreateTime;index"`
}
