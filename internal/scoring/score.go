// Package scoring turns audit metrics into a prospect priority score.
package scoring

import (
	"fmt"

	"github.com/sells-group/prospect-audit/internal/model"
)

const (
	baseScore = 50

	hotThreshold  = 80
	warmThreshold = 60
)

// gapTier is one word-count gap bracket. Only the steepest matching one applies.
type gapTier struct {
	below  float64
	points int
	label  string
}

var gapTiers = []gapTier{
	{below: 0.30, points: 30, label: "Severe content gap"},
	{below: 0.50, points: 20, label: "Major content gap"},
	{below: 0.70, points: 10, label: "Content below target"},
}

type missingTier struct {
	atLeast int
	points  int
}

var missingTiers = []missingTier{
	{atLeast: 15, points: 15},
	{atLeast: 10, points: 10},
	{atLeast: 5, points: 5},
}

// Score computes the priority score, tier, and reasons for m.
func Score(m model.Metrics) model.Score {
	score := baseScore
	reasons := []string{}

	if m.WordCountTarget > 0 && m.WordCountCurrent > 0 {
		ratio := float64(m.WordCountCurrent) / float64(m.WordCountTarget)
		for _, t := range gapTiers {
			if ratio < t.below {
				score += t.points
				reasons = append(reasons, fmt.Sprintf("%s: %d words vs %d target (%.0f%%)",
					t.label, m.WordCountCurrent, m.WordCountTarget, ratio*100))
				break
			}
		}
	}

	for _, t := range missingTiers {
		if m.MissingTermsCount >= t.atLeast {
			score += t.points
			reasons = append(reasons, fmt.Sprintf("%d important terms missing from the page", m.MissingTermsCount))
			break
		}
	}

	score = min(max(score, 0), 100)
	return model.Score{
		PriorityScore: score,
		Tier:          TierFor(score),
		Reasons:       reasons,
	}
}

// TierFor maps a numeric score to its tier.
func TierFor(score int) model.Tier {
	switch {
	case score >= hotThreshold:
		return model.TierHot
	case score >= warmThreshold:
		return model.TierWarm
	default:
		return model.TierCold
	}
}
