package services

import (
	"sync"
	"time"

	"rankedbyus/internal/db"
	"rankedbyus/internal/logging"
	"rankedbyus/internal/models"
	"rankedbyus/internal/utils"
)

// RankingService recomputes tool display ranks asynchronously. Rank is the
// time-decayed hotness used to order listings; it is derived presentation
// state. The transactional score/vote_count aggregates are never touched
// here — only the vote transaction moves those.
type RankingService struct {
	queue   chan uint // tool ids waiting for a rank refresh
	pending map[uint]bool
	mu      sync.Mutex
}

var (
	rankingService *RankingService
	rankingOnce    sync.Once
)

// GetRankingService returns the singleton ranking worker, starting it on
// first use.
func GetRankingService() *RankingService {
	rankingOnce.Do(func() {
		rankingService = &RankingService{
			queue:   make(chan uint, 1000),
			pending: make(map[uint]bool),
		}
		go rankingService.worker()
	})
	return rankingService
}

// ScheduleUpdate queues a tool for a rank refresh, deduplicating requests
// already in flight.
func (s *RankingService) ScheduleUpdate(toolID uint) {
	s.mu.Lock()
	if s.pending[toolID] {
		s.mu.Unlock()
		return
	}
	s.pending[toolID] = true
	s.mu.Unlock()

	select {
	case s.queue <- toolID:
	default:
		s.mu.Lock()
		delete(s.pending, toolID)
		s.mu.Unlock()
		logging.L().Warn().Uint("tool_id", toolID).Msg("rank update queue full, skipping")
	}
}

func (s *RankingService) worker() {
	batch := make([]uint, 0, 50)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case toolID := <-s.queue:
			batch = append(batch, toolID)
			if len(batch) >= 50 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(toolIDs []uint) {
	for _, toolID := range toolIDs {
		s.updateToolRank(toolID)

		s.mu.Lock()
		delete(s.pending, toolID)
		s.mu.Unlock()
	}
}

func (s *RankingService) updateToolRank(toolID uint) {
	var tool models.Tool
	if err := db.DB.First(&tool, toolID).Error; err != nil {
		logging.L().Warn().Uint("tool_id", toolID).Msg("rank update for missing tool")
		return
	}

	var reviews int64
	db.DB.Model(&models.Review{}).
		Where("tool_id = ? AND status = ?", toolID, models.ReviewStatusApproved).
		Count(&reviews)

	rank := utils.CalculateRank(tool.CreatedAt, tool.Score, int(reviews), tool.Views)

	if err := db.DB.Model(&tool).UpdateColumn("rank", rank).Error; err != nil {
		logging.L().Error().Err(err).Uint("tool_id", toolID).Msg("failed to update tool rank")
	}
}

// UpdateToolRankSync refreshes one tool's rank immediately.
func UpdateToolRankSync(toolID uint) {
	GetRankingService().updateToolRank(toolID)
}

// StartScheduledRankUpdate refreshes ranks nightly at 03:00 so decay applies
// even to tools nobody interacts with.
func (s *RankingService) StartScheduledRankUpdate() {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}
			time.Sleep(time.Until(next))

			logging.L().Info().Msg("nightly rank refresh starting")
			s.refreshActiveTools()
			logging.L().Info().Msg("nightly rank refresh done")
		}
	}()
}

// refreshActiveTools re-ranks tools touched in the last 7 days plus the
// current top 30, deduplicating while iterating.
func (s *RankingService) refreshActiveTools() {
	processed := make(map[uint]bool)
	count := 0

	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	var recent []models.Tool
	db.DB.Where("updated_at >= ?", sevenDaysAgo).Select("id").Find(&recent)
	for _, t := range recent {
		s.updateToolRank(t.ID)
		processed[t.ID] = true
		count++
	}

	var top []models.Tool
	db.DB.Order("rank DESC").Limit(30).Select("id").Find(&top)
	for _, t := range top {
		if !processed[t.ID] {
			s.updateToolRank(t.ID)
			count++
		}
	}

	logging.L().Info().Int("count", count).Msg("tool ranks refreshed")
}
