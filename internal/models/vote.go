package models

import (
	"time"
)

// Vote is one voter's current stance on one tool. At most one row exists per
// (tool_id, voter_key) pair; the unique index is what catches concurrent
// double-submissions. Retracting a vote deletes the row, it is never zeroed.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ToolID    uint      `gorm:"not null;uniqueIndex:idx_tool_voter" json:"tool_id"`
	VoterKey  string    `gorm:"size:64;not null;uniqueIndex:idx_tool_voter;index" json:"voter_key"`
	Value     int       `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`            // time of the most recent write
}
