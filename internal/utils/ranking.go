package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity      float64 // time gravity
	WeightVote   float64
	WeightReview float64
	WeightView   float64
	ScaleFactor  float64
}

var DefaultRankConfig = RankConfig{
	Gravity:      1.5,
	WeightVote:   1.0,
	WeightReview: 2.5,
	WeightView:   0.01,
	ScaleFactor:  100.0, // keeps ranks in a 0-100ish band
}

// CalculateRank computes the time-decayed hotness used to order tool listings.
// It is presentation state only; the transactional score/vote_count aggregates
// never pass through here.
func CalculateRank(listedAt time.Time, score, reviews, views int) float64 {
	hours := time.Since(listedAt).Hours()

	weightedSum := (float64(score) * DefaultRankConfig.WeightVote) +
		(float64(reviews) * DefaultRankConfig.WeightReview) +
		(float64(views) * DefaultRankConfig.WeightView)

	if weightedSum < 0 {
		weightedSum = 0 // score can be negative, log needs a floor
	}

	logScore := math.Log10(weightedSum + 1)
	numerator := logScore * DefaultRankConfig.ScaleFactor
	decay := math.Pow(hours+2, DefaultRankConfig.Gravity)

	return numerator / decay
}
