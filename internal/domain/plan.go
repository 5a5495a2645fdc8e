package domain

// BatchPlan is the output of one scheduling decision: the ordered set of
// tasks selected for tonight plus the budget accounting behind the
// selection. It is a transient value, recomputed on every planning call
// and never persisted.
type BatchPlan struct {
	Tasks                   []Task
	TotalEstimatedCostCents int64
	BudgetCapCents          int64
	TasksSkipped            int
	ExecutionOrder          []string
	// Reason explains an empty or truncated plan in operator terms
	// (hard-stop window, exhausted budget, no candidates).
	Reason string
}
