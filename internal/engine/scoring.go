package engine

import (
	"math"
	"time"
)

// ScoreConfig tunes the point award for a correct answer.
type ScoreConfig struct {
	// BasePoints is awarded for an instant correct answer.
	BasePoints int
	// MinPoints is the floor for any correct answer inside the time window.
	MinPoints int
}

// DefaultScoreConfig mirrors the usual base-1000 arcade scale.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{BasePoints: 1000, MinPoints: 100}
}

// Score grades one submission. Correctness requires the selected labels to
// equal the correct label set exactly; a subset or superset earns nothing.
// Points decay linearly from BasePoints at t=0 to MinPoints at t=limit, and a
// correct answer inside the window always earns at least MinPoints.
// Stateless on purpose; every scoring edge case is tested against this alone.
func Score(correctLabels, selectedLabels []string, elapsed, limit time.Duration, cfg ScoreConfig) (bool, int) {
	if !labelSetsEqual(correctLabels, selectedLabels) {
		return false, 0
	}
	if limit <= 0 {
		return true, cfg.BasePoints
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	ratio := float64(elapsed) / float64(limit)
	points := cfg.BasePoints - int(math.Round(float64(cfg.BasePoints-cfg.MinPoints)*ratio))
	if points < cfg.MinPoints {
		points = cfg.MinPoints
	}
	return true, points
}

// labelSetsEqual compares two label collections as sets, ignoring order and
// duplicate selections.
func labelSetsEqual(correct, selected []string) bool {
	if len(correct) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(correct))
	for _, l := range correct {
		want[l] = struct{}{}
	}
	got := make(map[string]struct{}, len(selected))
	for _, l := range selected {
		if _, ok := want[l]; !ok {
			return false
		}
		got[l] = struct{}{}
	}
	return len(got) == len(want)
}
