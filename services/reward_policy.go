package services

import (
	"content-reward-system/models"
	"content-reward-system/utils"
)

// RewardPolicy defines how one action pays out.
// Cooldown semantics: 0 = no cooldown, CooldownOnceEver = one-time action
// checked via event-log existence. DailyLimit 0 = unlimited.
type RewardPolicy struct {
	BaseAmountBase  int64
	Engagement      bool // tier-weighted when true; flat payout when false
	CooldownSeconds int64
	DailyLimit      int
}

const CooldownOnceEver int64 = -1

// DailyRewardCapBase caps the aggregate a single user can earn per UTC day.
const DailyRewardCapBase int64 = 50 * utils.BaseUnitsPerDisplay

// DefaultRewardPolicies is the static policy table (tunable via config later).
// The engagement/flat split is a deliberate policy invariant: creation and
// payout actions never get tier-weighted.
var DefaultRewardPolicies = map[models.RewardAction]RewardPolicy{
	// Engagement class
	models.ActionReceivedUpvote:     {BaseAmountBase: utils.ToBaseUnits(0.1), Engagement: true, DailyLimit: 50},
	models.ActionReceivedSave:       {BaseAmountBase: utils.ToBaseUnits(0.25), Engagement: true, DailyLimit: 20},
	models.ActionReceivedComment:    {BaseAmountBase: utils.ToBaseUnits(0.2), Engagement: true, DailyLimit: 30},
	models.ActionReshareAttribution: {BaseAmountBase: utils.ToBaseUnits(0.5), Engagement: true, DailyLimit: 10},
	models.ActionGivenUpvote:        {BaseAmountBase: utils.ToBaseUnits(0.05), Engagement: true, DailyLimit: 30},

	// Flat class
	models.ActionPostCreated:        {BaseAmountBase: utils.ToBaseUnits(1.0), CooldownSeconds: 300, DailyLimit: 5},
	models.ActionDailyLogin:         {BaseAmountBase: utils.ToBaseUnits(0.5), CooldownSeconds: 20 * 60 * 60, DailyLimit: 1},
	models.ActionReferralBonus:      {BaseAmountBase: utils.ToBaseUnits(5.0), DailyLimit: 10},
	models.ActionWalletLinked:       {BaseAmountBase: utils.ToBaseUnits(2.0), CooldownSeconds: CooldownOnceEver},
	models.ActionFirstPostMilestone: {BaseAmountBase: utils.ToBaseUnits(3.0), CooldownSeconds: CooldownOnceEver},

	// Direct payouts routed through the reward service by the bounty and
	// lottery engines. Amount comes from the caller, never from the base.
	models.ActionBountyPayout: {},
	models.ActionLotteryPrize: {},
}
