package engine

import (
	"testing"
	"time"
)

func TestScoreExactMatchRequired(t *testing.T) {
	correct := []string{"a", "c"}
	limit := 30 * time.Second
	cfg := DefaultScoreConfig()

	cases := []struct {
		name     string
		selected []string
	}{
		{"subset", []string{"a"}},
		{"superset", []string{"a", "b", "c"}},
		{"disjoint", []string{"b", "d"}},
		{"empty", nil},
	}
	for _, tc := range cases {
		ok, points := Score(correct, tc.selected, time.Second, limit, cfg)
		if ok || points != 0 {
			t.Fatalf("%s: expected incorrect with 0 points, got ok=%v points=%d", tc.name, ok, points)
		}
	}

	ok, points := Score(correct, []string{"c", "a"}, time.Second, limit, cfg)
	if !ok || points <= 0 {
		t.Fatalf("order-independent match: expected correct with points, got ok=%v points=%d", ok, points)
	}
}

func TestScoreDecayIsMonotone(t *testing.T) {
	correct := []string{"b"}
	limit := 30 * time.Second
	cfg := DefaultScoreConfig()

	prev := cfg.BasePoints + 1
	for elapsed := time.Duration(0); elapsed <= limit; elapsed += time.Second {
		ok, points := Score(correct, []string{"b"}, elapsed, limit, cfg)
		if !ok {
			t.Fatalf("elapsed %v: expected correct", elapsed)
		}
		if points <= 0 {
			t.Fatalf("elapsed %v: correct in-window answer must earn points, got %d", elapsed, points)
		}
		if points > prev {
			t.Fatalf("elapsed %v: decay not monotone, %d > previous %d", elapsed, points, prev)
		}
		prev = points
	}
}

func TestScoreBoundaries(t *testing.T) {
	correct := []string{"b"}
	limit := 30 * time.Second
	cfg := DefaultScoreConfig()

	if _, points := Score(correct, []string{"b"}, 0, limit, cfg); points != cfg.BasePoints {
		t.Fatalf("instant answer: expected %d, got %d", cfg.BasePoints, points)
	}
	if _, points := Score(correct, []string{"b"}, limit, limit, cfg); points != cfg.MinPoints {
		t.Fatalf("last-moment answer: expected floor %d, got %d", cfg.MinPoints, points)
	}
	// Elapsed past the limit is clamped; rejection happens upstream.
	if _, points := Score(correct, []string{"b"}, limit+time.Minute, limit, cfg); points != cfg.MinPoints {
		t.Fatalf("over-limit elapsed should clamp to floor, got %d", points)
	}
	// A question with no time limit always pays full points.
	if _, points := Score(correct, []string{"b"}, time.Minute, 0, cfg); points != cfg.BasePoints {
		t.Fatalf("no-limit question: expected %d, got %d", cfg.BasePoints, points)
	}
}

func TestLabelSetsEqualIgnoresDuplicates(t *testing.T) {
	if !labelSetsEqual([]string{"a", "b"}, []string{"b", "a", "a"}) {
		t.Fatalf("duplicate selections should not break set equality")
	}
	if labelSetsEqual(nil, nil) {
		t.Fatalf("a question with no correct labels must never grade correct")
	}
}
