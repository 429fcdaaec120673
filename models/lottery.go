package models

import (
	"time"
)

// DrawingStatus is the weekly drawing lifecycle: open → completed | cancelled.
type DrawingStatus string

const (
	DrawingStatusOpen      DrawingStatus = "open"
	DrawingStatusCompleted DrawingStatus = "completed"
	DrawingStatusCancelled DrawingStatus = "cancelled"
)

// LotteryDrawing is one weekly cycle. Created lazily on first access within
// the cycle; the unique index on WeekStart makes concurrent lazy creates
// resolve to a single row (first writer wins, everyone else reads it).
type LotteryDrawing struct {
	ID                string        `gorm:"primaryKey" json:"id"`
	WeekStart         time.Time     `gorm:"uniqueIndex;not null" json:"week_start"`
	WeekEnd           time.Time     `gorm:"not null" json:"week_end"`
	Status            DrawingStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	TotalParticipants int           `gorm:"not null;default:0" json:"total_participants"`
	TotalTickets      int           `gorm:"not null;default:0" json:"total_tickets"`

	// Up to three prize tiers; later tiers stay nil when the pool runs out
	// of distinct ticket-holders.
	FirstPlaceID  *string    `json:"first_place_id,omitempty"`
	SecondPlaceID *string    `json:"second_place_id,omitempty"`
	ThirdPlaceID  *string    `json:"third_place_id,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Entries []LotteryEntry `json:"entries,omitempty" gorm:"foreignKey:DrawingID"`
}

// LotteryEntry is one participant in one drawing. TicketCount is the
// diminishing-returns weight: clamp(floor(sqrt(score)), 0, 10).
type LotteryEntry struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	DrawingID      string    `gorm:"uniqueIndex:idx_drawing_user;not null" json:"drawing_id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_drawing_user;not null" json:"external_user_id"`
	Score          int64     `gorm:"not null" json:"score"`
	TicketCount    int       `gorm:"not null" json:"ticket_count"`
	PrizeTier      int       `gorm:"not null;default:0" json:"prize_tier"` // 0 = no prize, 1..3 = tier won
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}
