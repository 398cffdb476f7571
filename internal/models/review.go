package models

import (
	"time"
)

// Review statuses
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ToolID    uint      `gorm:"not null;uniqueIndex:idx_tool_reviewer" json:"tool_id"`
	Tool      Tool      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"tool"`
	VoterKey  string    `gorm:"size:64;not null;uniqueIndex:idx_tool_reviewer;index" json:"voter_key"`
	UserID    *uint     `gorm:"index" json:"user_id"` // nil for anonymous reviewers
	Rating    int       `gorm:"not null" json:"rating"`
	Title     string    `gorm:"size:120" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Status    string    `gorm:"size:20;default:'pending';not null;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
