// Package governor decides which queued tasks fit into the remaining
// budget window. It is stateless policy: callers supply the candidate
// pool, the remaining balance, and the reset deadline, and get back a
// plan that cannot overspend even if every task hits its per-task cap.
package governor

import (
	"fmt"
	"sort"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// Config tunes the spending policy
type Config struct {
	// CreditCapPercent is the share of the remaining balance a single
	// batch may commit to.
	CreditCapPercent int
	// MaxBudgetPerTaskUsdCents is the fixed pessimistic cost assumed
	// for every selected task.
	MaxBudgetPerTaskUsdCents int64
	// HardStopMinutesBeforeReset is the trailing no-new-work interval
	// before a billing window reset.
	HardStopMinutesBeforeReset int
	// WindowResetHour is the local hour at which the billing window
	// resets, used by budget sources to derive the next reset instant.
	WindowResetHour int
}

// DefaultConfig returns the stock spending policy
func DefaultConfig() Config {
	return Config{
		CreditCapPercent:           75,
		MaxBudgetPerTaskUsdCents:   50,
		HardStopMinutesBeforeReset: 30,
		WindowResetHour:            3,
	}
}

// Evaluation is a counts-only affordability summary. It never selects
// or mutates tasks.
type Evaluation struct {
	ApprovedCount     int
	RejectedCount     int
	CappedBudgetCents int64
	Reason            string
}

// Governor applies the spending policy with an injected clock
type Governor struct {
	cfg Config
	now func() time.Time
}

// New creates a Governor. A nil clock defaults to time.Now.
func New(cfg Config, now func() time.Time) *Governor {
	if now == nil {
		now = time.Now
	}
	return &Governor{cfg: cfg, now: now}
}

// Config returns the policy the governor was built with
func (g *Governor) Config() Config {
	return g.cfg
}

// WithinHardStop reports whether now falls inside the trailing no-work
// interval before resetAt. Exactly at the cutoff counts as inside; a
// reset already in the past does not (a new window has begun).
func (g *Governor) WithinHardStop(resetAt time.Time) bool {
	until := resetAt.Sub(g.now())
	return until >= 0 && until <= time.Duration(g.cfg.HardStopMinutesBeforeReset)*time.Minute
}

// CappedBudget returns the batch spending cap derived from the
// remaining balance, floored to whole cents.
func (g *Governor) CappedBudget(remainingCents int64) int64 {
	if remainingCents <= 0 {
		return 0
	}
	return remainingCents * int64(g.cfg.CreditCapPercent) / 100
}

// Evaluate summarizes how many of the candidate tasks are affordable
// right now. Counts only; BuildBatchPlan does the actual selection.
func (g *Governor) Evaluate(tasks []domain.Task, remainingCents int64, resetAt time.Time) Evaluation {
	if g.WithinHardStop(resetAt) {
		return Evaluation{
			RejectedCount: len(tasks),
			Reason:        g.hardStopReason(),
		}
	}

	capped := g.CappedBudget(remainingCents)
	if capped <= 0 {
		return Evaluation{
			RejectedCount:     len(tasks),
			CappedBudgetCents: 0,
			Reason:            "credit cap leaves no spendable budget",
		}
	}

	maxTasks := int(capped / g.cfg.MaxBudgetPerTaskUsdCents)
	approved := len(tasks)
	if approved > maxTasks {
		approved = maxTasks
	}
	return Evaluation{
		ApprovedCount:     approved,
		RejectedCount:     len(tasks) - approved,
		CappedBudgetCents: capped,
	}
}

// BuildBatchPlan greedily fills the budget cap with the highest-scored
// tasks. Every selected task is costed at the fixed per-task cap, so
// the plan cannot overrun even if each task spends its maximum. Entering
// the hard-stop window partway through latches: the remainder is counted
// skipped while tasks already selected stay in the plan.
func (g *Governor) BuildBatchPlan(tasks []domain.Task, remainingCents int64, resetAt time.Time) *domain.BatchPlan {
	capped := g.CappedBudget(remainingCents)
	plan := &domain.BatchPlan{BudgetCapCents: capped}

	if len(tasks) == 0 {
		plan.Reason = "no eligible tasks"
		return plan
	}
	if capped <= 0 {
		plan.TasksSkipped = len(tasks)
		plan.Reason = "credit cap leaves no spendable budget"
		return plan
	}

	sorted := make([]domain.Task, len(tasks))
	copy(sorted, tasks)
	// Stable sort: equal scores keep their original relative order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveScore() > sorted[j].EffectiveScore()
	})

	var runningTotal int64
	hardStopped := false
	for _, task := range sorted {
		if !hardStopped && g.WithinHardStop(resetAt) {
			hardStopped = true
		}
		if hardStopped || runningTotal+g.cfg.MaxBudgetPerTaskUsdCents > capped {
			plan.TasksSkipped++
			continue
		}
		runningTotal += g.cfg.MaxBudgetPerTaskUsdCents
		plan.Tasks = append(plan.Tasks, task)
		plan.ExecutionOrder = append(plan.ExecutionOrder, task.ID)
	}

	plan.TotalEstimatedCostCents = runningTotal
	if len(plan.Tasks) == 0 {
		if hardStopped {
			plan.Reason = g.hardStopReason()
		} else {
			plan.Reason = "per-task budget exceeds the batch cap"
		}
	}
	return plan
}

func (g *Governor) hardStopReason() string {
	return fmt.Sprintf("within hard stop window (%d min before window reset)", g.cfg.HardStopMinutesBeforeReset)
}
