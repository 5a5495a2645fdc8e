// Package nightplan gates task scheduling by wall-clock time and risk,
// and owns the per-night branch naming convention.
package nightplan

import (
	"fmt"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
	"github.com/hochfrequenz/claude-nightmode/internal/governor"
)

// Config describes the nightly execution window
type Config struct {
	// StartHour and EndHour bound the window; StartHour > EndHour means
	// the window wraps midnight.
	StartHour int
	EndHour   int
	// MaxRisk is the highest task risk rating night mode will auto-run.
	MaxRisk int
}

// DefaultConfig returns the stock 23:00-06:00 window
func DefaultConfig() Config {
	return Config{StartHour: 23, EndHour: 6, MaxRisk: 3}
}

// Planner filters candidates for unattended execution and delegates
// budget selection to the Governor
type Planner struct {
	cfg Config
	gov *governor.Governor
	now func() time.Time
}

// New creates a Planner. A nil clock defaults to time.Now.
func New(cfg Config, gov *governor.Governor, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{cfg: cfg, gov: gov, now: now}
}

// IsNightTime reports whether the current hour falls inside the
// configured window, handling windows that wrap midnight.
func (p *Planner) IsNightTime() bool {
	hour := p.now().Hour()
	if p.cfg.StartHour > p.cfg.EndHour {
		return hour >= p.cfg.StartHour || hour < p.cfg.EndHour
	}
	return hour >= p.cfg.StartHour && hour < p.cfg.EndHour
}

// Plan selects tonight's batch from the candidate pool: only queued
// tasks at or below the risk ceiling are considered, then the governor
// fills the budget cap by descending score.
func (p *Planner) Plan(tasks []domain.Task, remainingCents int64, resetAt time.Time) *domain.BatchPlan {
	var eligible []domain.Task
	for _, t := range tasks {
		if t.Status != domain.StatusQueued {
			continue
		}
		if t.Risk > p.cfg.MaxRisk {
			continue
		}
		eligible = append(eligible, t)
	}
	return p.gov.BuildBatchPlan(eligible, remainingCents, resetAt)
}

// BranchName returns the shared branch for a calendar night, one per
// day across every project touched.
func (p *Planner) BranchName(date time.Time) string {
	return fmt.Sprintf("nightmode/%s", date.Format("2006-01-02"))
}

// EstimateDurationMinutes returns a fixed three minutes per planned task
func (p *Planner) EstimateDurationMinutes(plan *domain.BatchPlan) int {
	return len(plan.Tasks) * 3
}
