package taskstore

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

const executionColumns = `id, task_id, model, prompt_tokens, completion_tokens, total_tokens, cost_usd_cents, duration_ms, exit_code, stdout, stderr, branch, commit_hash, started_at, completed_at`

// InsertExecution stores an execution record and returns its ID,
// generating one when the record carries none
func (s *Store) InsertExecution(exec *domain.Execution) (string, error) {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}

	_, err := s.db.Exec(`
		INSERT INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exec.ID,
		exec.TaskID,
		exec.Model,
		exec.PromptTokens,
		exec.CompletionTokens,
		exec.TotalTokens,
		exec.CostUsdCents,
		exec.DurationMs,
		exec.ExitCode,
		exec.Stdout,
		exec.Stderr,
		exec.Branch,
		exec.CommitHash,
		exec.StartedAt,
		exec.CompletedAt,
	)
	if err != nil {
		return "", err
	}
	return exec.ID, nil
}

// GetExecution retrieves an execution by ID
func (s *Store) GetExecution(id string) (*domain.Execution, error) {
	row := s.db.QueryRow(`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	return scanExecution(row.Scan)
}

// ListExecutions returns all executions for a task, oldest first
func (s *Store) ListExecutions(taskID string) ([]*domain.Execution, error) {
	rows, err := s.db.Query(`SELECT `+executionColumns+` FROM executions WHERE task_id = ? ORDER BY started_at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// ListExecutionsSince returns executions started at or after the given
// time, oldest first
func (s *Store) ListExecutionsSince(since time.Time) ([]*domain.Execution, error) {
	rows, err := s.db.Query(`SELECT `+executionColumns+` FROM executions WHERE started_at >= ? ORDER BY started_at ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func scanExecution(scan func(dest ...interface{}) error) (*domain.Execution, error) {
	var exec domain.Execution
	var model, stdout, stderr, branch, commitHash sql.NullString

	err := scan(&exec.ID, &exec.TaskID, &model, &exec.PromptTokens, &exec.CompletionTokens,
		&exec.TotalTokens, &exec.CostUsdCents, &exec.DurationMs, &exec.ExitCode,
		&stdout, &stderr, &branch, &commitHash, &exec.StartedAt, &exec.CompletedAt)
	if err != nil {
		return nil, err
	}

	exec.Model = model.String
	exec.Stdout = stdout.String
	exec.Stderr = stderr.String
	exec.Branch = branch.String
	exec.CommitHash = commitHash.String

	return &exec, nil
}
