// Package executor runs planned tasks one at a time against the coding
// agent, records each attempt as an immutable execution, and moves the
// resulting changes onto the per-night git branch.
package executor

import (
	"context"
	"log"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// batchFailureLimit stops a batch once this many tasks have failed.
const batchFailureLimit = 3

// Store is the slice of persistence the executor needs while a batch
// is running.
type Store interface {
	UpdateTaskStatus(id string, status domain.TaskStatus) error
	InsertExecution(exec *domain.Execution) (string, error)
}

// TaskResult is the outcome of a single attempt.
type TaskResult struct {
	Task      domain.Task
	Execution domain.Execution
	Success   bool
	Error     string
}

// ProgressFunc observes batch progress after each processed task.
type ProgressFunc func(completed, total int, result TaskResult)

// Executor drives the per-task lifecycle: mark running, prepare the
// branch, run the agent, commit on success, persist the attempt.
type Executor struct {
	runner AgentRunner
	store  Store
	dryRun bool
	now    func() time.Time
}

func New(runner AgentRunner, store Store, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{
		runner: runner,
		store:  store,
		now:    now,
	}
}

// SetDryRun makes ExecuteTask fabricate successful zero-cost results
// without invoking the agent, touching git, or writing to the store.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// ExecuteTask runs one task through its full lifecycle and returns the
// outcome. Git trouble never fails the attempt; only the agent's exit
// code decides success.
func (e *Executor) ExecuteTask(ctx context.Context, task domain.Task, branch string) TaskResult {
	log.Printf("[executor] starting task %s: %s", task.ID, task.Title)

	start := e.now()
	execution := domain.Execution{
		TaskID:    task.ID,
		Branch:    branch,
		StartedAt: start,
	}

	if e.dryRun {
		execution.CompletedAt = start
		log.Printf("[executor] dry run, skipping agent for task %s", task.ID)
		return TaskResult{Task: task, Execution: execution, Success: true}
	}

	e.setStatus(task.ID, domain.StatusRunning)

	if err := ensureBranch(task.Project, branch); err != nil {
		log.Printf("[executor] preparing branch %s in %s: %v", branch, task.Project, err)
	}

	res, err := e.runner.Run(ctx, &task)
	if err != nil {
		// The runner contract is to return a result even for failed
		// runs; treat a bare error like a spawn failure.
		res = spawnFailure(err)
	}

	execution.Model = res.Model
	execution.PromptTokens = res.PromptTokens
	execution.CompletionTokens = res.CompletionTokens
	execution.TotalTokens = res.TotalTokens
	execution.CostUsdCents = res.CostUsdCents
	execution.DurationMs = res.DurationMs
	execution.ExitCode = res.ExitCode
	execution.Stdout = res.Stdout
	execution.Stderr = res.Stderr

	if res.ExitCode == 0 {
		execution.CommitHash = commitChanges(task.Project, branch, &task)
	}
	execution.CompletedAt = e.now()

	e.persistExecution(&execution)

	result := TaskResult{
		Task:      task,
		Execution: execution,
		Success:   res.ExitCode == 0,
	}
	if result.Success {
		e.setStatus(task.ID, domain.StatusCompleted)
		log.Printf("[executor] task %s completed (%d tokens, %d cents)", task.ID, res.TotalTokens, res.CostUsdCents)
	} else {
		result.Error = res.Stderr
		e.setStatus(task.ID, domain.StatusFailed)
		log.Printf("[executor] task %s failed with exit code %d", task.ID, res.ExitCode)
	}
	return result
}

// ExecuteBatch runs the planned tasks strictly in order, reporting each
// outcome to onProgress, and aborts once batchFailureLimit tasks have
// failed. The failing task itself is always processed and reported.
func (e *Executor) ExecuteBatch(ctx context.Context, plan *domain.BatchPlan, branch string, onProgress ProgressFunc) []TaskResult {
	total := len(plan.Tasks)
	results := make([]TaskResult, 0, total)
	failures := 0

	for _, task := range plan.Tasks {
		if ctx.Err() != nil {
			log.Printf("[executor] batch cancelled after %d of %d tasks", len(results), total)
			break
		}

		result := e.ExecuteTask(ctx, task, branch)
		results = append(results, result)
		if !result.Success {
			failures++
		}

		if onProgress != nil {
			onProgress(len(results), total, result)
		}

		if failures >= batchFailureLimit {
			log.Printf("[executor] stopping batch after %d failures", failures)
			break
		}
	}
	return results
}

// SafetyCommitAll takes one safety commit per distinct project in the
// plan, in first-appearance order. It must run before the batch starts
// so operator work-in-progress is parked before any task can touch it.
func (e *Executor) SafetyCommitAll(plan *domain.BatchPlan) []domain.SafetyCommit {
	if e.dryRun {
		return nil
	}

	seen := make(map[string]bool)
	commits := make([]domain.SafetyCommit, 0)
	for _, task := range plan.Tasks {
		if seen[task.Project] {
			continue
		}
		seen[task.Project] = true
		commits = append(commits, e.SafetyCommit(task.Project))
	}
	return commits
}

func (e *Executor) setStatus(taskID string, status domain.TaskStatus) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateTaskStatus(taskID, status); err != nil {
		log.Printf("[executor] updating task %s to %s: %v", taskID, status, err)
	}
}

func (e *Executor) persistExecution(execution *domain.Execution) {
	if e.store == nil {
		return
	}
	id, err := e.store.InsertExecution(execution)
	if err != nil {
		log.Printf("[executor] recording execution for task %s: %v", execution.TaskID, err)
		return
	}
	execution.ID = id
}
