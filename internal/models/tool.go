package models

import (
	"time"
)

// Tool statuses
const (
	ToolStatusPending  = "pending"
	ToolStatusApproved = "approved"
	ToolStatusRejected = "rejected"
)

type Tool struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slug       string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	CategoryID uint      `gorm:"not null;index;default:1" json:"category_id"`
	Category   Category  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	Name       string    `gorm:"not null" json:"name"`
	Tagline    string    `gorm:"size:200" json:"tagline"`
	Website    string    `json:"website"`
	Pricing    string    `gorm:"size:40" json:"pricing"` // "free", "freemium", "paid"
	Summary    string    `gorm:"type:text" json:"summary"`
	Status     string    `gorm:"size:20;default:'pending';not null;index" json:"status"`
	Score      int       `gorm:"default:0" json:"score"`      // sum of vote values, maintained transactionally
	VoteCount  int       `gorm:"default:0" json:"vote_count"` // distinct voters, maintained transactionally
	Rank       float64   `gorm:"default:0" json:"rank"`       // time-decayed hotness, display ordering only
	Views      int       `gorm:"default:0" json:"views"`
	Featured   bool      `gorm:"default:false" json:"featured"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Filled at query time, not stored
	ReviewCount int `gorm:"-" json:"review_count"`
	UserVote    int `gorm:"-" json:"user_vote"`
}
