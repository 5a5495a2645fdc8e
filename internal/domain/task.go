package domain

import (
	"fmt"
	"math"
	"time"
)

// Task represents a unit of discovered, automatable work
type Task struct {
	ID          string
	Project     string
	Source      string
	Category    string
	Title       string
	Description string
	File        string
	Line        int
	Impact      int
	Confidence  int
	Risk        int
	Duration    int
	Score       float64
	Status      TaskStatus
	Prompt      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ComputeScore derives the selection priority from the four 1-5 ratings.
// Higher impact and confidence raise it, higher risk and duration lower it.
func ComputeScore(impact, confidence, risk, duration int) float64 {
	denom := float64(risk*2 + duration)
	if denom == 0 {
		return 0
	}
	raw := float64(impact*3+confidence*2) / denom
	return math.Round(raw*100) / 100
}

// EffectiveScore returns the task's precomputed score, deriving it from the
// ratings when it has not been set yet.
func (t *Task) EffectiveScore() float64 {
	if t.Score > 0 {
		return t.Score
	}
	return ComputeScore(t.Impact, t.Confidence, t.Risk, t.Duration)
}

// ValidateRatings checks that all four ratings are in the 1-5 range
func (t *Task) ValidateRatings() error {
	for _, r := range []struct {
		name  string
		value int
	}{
		{"impact", t.Impact},
		{"confidence", t.Confidence},
		{"risk", t.Risk},
		{"duration", t.Duration},
	} {
		if r.value < 1 || r.value > 5 {
			return fmt.Errorf("task %q: %s rating %d out of range 1-5", t.Title, r.name, r.value)
		}
	}
	return nil
}

// Fingerprint identifies a task for duplicate detection across imports
func (t *Task) Fingerprint() string {
	return t.Project + "\x00" + t.Title
}
