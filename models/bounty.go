package models

import (
	"time"

	"gorm.io/gorm"
)

// BountyStatus is the bounty lifecycle. Transitions are strictly forward-only:
// open → closed (award) | expired (time) | cancelled (zero responses)
// expired → refunded (zero responses). closed/refunded/cancelled are terminal.
type BountyStatus string

const (
	BountyStatusOpen      BountyStatus = "open"
	BountyStatusClosed    BountyStatus = "closed"
	BountyStatusExpired   BountyStatus = "expired"
	BountyStatusRefunded  BountyStatus = "refunded"
	BountyStatusCancelled BountyStatus = "cancelled"
)

// BountyTxType tags every token movement tied to a bounty.
type BountyTxType string

const (
	BountyTxStake  BountyTxType = "stake"
	BountyTxAward  BountyTxType = "award"
	BountyTxBurn   BountyTxType = "burn"
	BountyTxRefund BountyTxType = "refund"
	BountyTxCancel BountyTxType = "cancel"
	BountyTxTip    BountyTxType = "tip"
)

// BountyRequest is a staked discovery request ("find me a restaurant for X").
// The stake is held in escrow until exactly one of award/refund/cancel fires.
type BountyRequest struct {
	ID             string       `gorm:"primaryKey" json:"id"`
	CreatorID      string       `gorm:"index;not null" json:"creator_id"`
	Title          string       `gorm:"not null" json:"title"`
	Description    string       `gorm:"type:text" json:"description"`
	StakeBase      int64        `gorm:"not null" json:"stake_base"`
	Status         BountyStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	ExpiresAt      time.Time    `gorm:"not null;index" json:"expires_at"`
	ResponseCount  int          `gorm:"not null;default:0" json:"response_count"`
	AwardedRespID  *string      `gorm:"type:uuid" json:"awarded_response_id,omitempty"`
	AwardedAt      *time.Time   `json:"awarded_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Submissions  []BountySubmission  `json:"submissions,omitempty" gorm:"foreignKey:BountyID"`
	Transactions []BountyTransaction `json:"transactions,omitempty" gorm:"foreignKey:BountyID"`
}

// BountySubmission is one responder's recommendation on a bounty.
// A responder may submit at most once per bounty and an entity may be
// recommended at most once per bounty — both enforced by unique indexes,
// not just the pre-insert existence checks.
//
// RestaurantID is the normalized entity link. Older clients sent the link
// embedded in a list payload; the service normalizes both shapes into this
// one column at intake, so award matching has a single lookup path.
type BountySubmission struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	BountyID     string    `gorm:"uniqueIndex:idx_bounty_responder;uniqueIndex:idx_bounty_entity;not null" json:"bounty_id"`
	ResponderID  string    `gorm:"uniqueIndex:idx_bounty_responder;not null" json:"responder_id"`
	RestaurantID string    `gorm:"uniqueIndex:idx_bounty_entity;not null" json:"restaurant_id"`
	Rationale    string    `gorm:"type:text" json:"rationale"`
	IsWinner     bool      `gorm:"not null;default:false" json:"is_winner"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BountyTransaction is the append-only escrow audit trail. Rows are written
// best-effort after the economic effect; escrow conservation is reconstructed
// from them but never depends on them.
type BountyTransaction struct {
	ID         string       `gorm:"primaryKey" json:"id"`
	BountyID   string       `gorm:"index;not null" json:"bounty_id"`
	Type       BountyTxType `gorm:"type:varchar(16);not null" json:"type"`
	FromUserID string       `json:"from_user_id,omitempty"`
	ToUserID   string       `json:"to_user_id,omitempty"`
	AmountBase int64        `gorm:"not null" json:"amount_base"`
	CreatedAt  time.Time    `json:"created_at" gorm:"autoCreateTime"`
}
