package models

import (
	"time"
)

// Sponsor slots
const (
	SponsorSlotHome     = "home"
	SponsorSlotCategory = "category"
)

// Sponsor is a paid placement of a tool in a listing slot. Active placements
// within their time window are rotated by weight on listing pages.
type Sponsor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ToolID    uint      `gorm:"not null;index" json:"tool_id"`
	Tool      Tool      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"tool"`
	Slot      string    `gorm:"size:20;not null;index" json:"slot"`
	Weight    int       `gorm:"default:1" json:"weight"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
