package models

import (
	"time"

	"gorm.io/gorm"
)

// AccountTier controls how a user's rewards settle:
// WalletFull mints on-chain immediately, EmailBasic accrues to pending.
type AccountTier string

const (
	AccountTierEmailBasic AccountTier = "email_basic"
	AccountTierWalletFull AccountTier = "wallet_full"
)

// TrustTier weights engagement-class rewards. It never touches flat payouts.
type TrustTier string

const (
	TrustTierNew         TrustTier = "new"
	TrustTierEstablished TrustTier = "established"
	TrustTierTrusted     TrustTier = "trusted"
)

// Weight returns the multiplier applied to engagement-class reward bases.
func (t TrustTier) Weight() float64 {
	switch t {
	case TrustTierNew:
		return 0.5
	case TrustTierTrusted:
		return 1.5
	default:
		return 1.0
	}
}

// ValidTrustTier reports whether s is one of the closed trust tiers.
// Tier strings are validated once at the boundary, never re-parsed in handlers.
func ValidTrustTier(s string) bool {
	switch TrustTier(s) {
	case TrustTierNew, TrustTierEstablished, TrustTierTrusted:
		return true
	}
	return false
}

// User is the local mirror of a platform member plus their BOCA ledger state.
// BalanceBase is stored in integer base units (1 display BOCA = 1,000,000 base)
// and is only ever mutated through atomic increments in the ledger service.
// For WalletFull users it shadows the chain so UI reads never hit a node.
type User struct {
	ID             string      `gorm:"primaryKey" json:"id"`
	ExternalUserID string      `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string      `gorm:"index;not null" json:"username"`
	Email          string      `json:"email,omitempty"`
	AccountTier    AccountTier `gorm:"type:varchar(16);not null;default:'email_basic'" json:"account_tier"`
	TrustTier      TrustTier   `gorm:"type:varchar(16);not null;default:'new'" json:"trust_tier"`

	BalanceBase   int64   `gorm:"not null;default:0" json:"balance_base"`
	WalletAddress *string `gorm:"type:varchar(128);index" json:"wallet_address,omitempty"`

	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Users are deactivated, never hard-deleted.
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// EngagementScore is the weekly engagement mirror fed by the sync worker.
// The lottery reads it; this service never computes the score itself.
type EngagementScore struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_engagement_user_week;not null" json:"external_user_id"`
	WeekStart      time.Time `gorm:"uniqueIndex:idx_engagement_user_week;not null" json:"week_start"`
	Score          int64     `gorm:"not null;default:0" json:"score"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
