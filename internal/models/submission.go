package models

import (
	"time"
)

// Submission statuses. Payment itself is handled by the external provider;
// an admin marks a submission paid once the provider confirms.
const (
	SubmissionStatusPendingPayment = "pending_payment"
	SubmissionStatusPaid           = "paid"
	SubmissionStatusApproved       = "approved"
	SubmissionStatusRejected       = "rejected"
)

type Submission struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	VoterKey   string    `gorm:"size:64;not null;index" json:"voter_key"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	Email      string    `gorm:"not null" json:"email"`
	ToolName   string    `gorm:"not null" json:"tool_name"`
	Website    string    `gorm:"not null" json:"website"`
	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	Category   Category  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	Pitch      string    `gorm:"type:text" json:"pitch"`
	Status     string    `gorm:"size:20;default:'pending_payment';not null;index" json:"status"`
	ToolID     *uint     `gorm:"index" json:"tool_id"` // set once approved
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
