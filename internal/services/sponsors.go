package services

import (
	"math/rand"
	"time"

	"rankedbyus/internal/models"

	"gorm.io/gorm"
)

// PickSponsor selects one active placement for a listing slot by weighted
// random rotation. Returns nil when the slot has no live sponsor.
func PickSponsor(gdb *gorm.DB, slot string) (*models.Sponsor, error) {
	now := time.Now()
	var candidates []models.Sponsor
	err := gdb.Preload("Tool").
		Where("slot = ? AND active = ? AND starts_at <= ? AND ends_at > ?", slot, true, now, now).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	total := 0
	for _, s := range candidates {
		if s.Weight > 0 {
			total += s.Weight
		}
	}
	if total == 0 {
		return &candidates[0], nil
	}

	pick := rand.Intn(total)
	for i := range candidates {
		if candidates[i].Weight <= 0 {
			continue
		}
		pick -= candidates[i].Weight
		if pick < 0 {
			return &candidates[i], nil
		}
	}
	return &candidates[len(candidates)-1], nil
}
