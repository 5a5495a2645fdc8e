package taskstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// Store provides SQLite-backed persistence for tasks, executions,
// ledger entries and credit snapshots
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTask inserts a new task, generating an ID when missing
func (s *Store) InsertTask(task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.Status == "" {
		task.Status = domain.StatusQueued
	}

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, project, source, category, title, description, file, line, impact, confidence, risk, duration, score, status, prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.Project,
		task.Source,
		task.Category,
		task.Title,
		task.Description,
		task.File,
		task.Line,
		task.Impact,
		task.Confidence,
		task.Risk,
		task.Duration,
		task.Score,
		string(task.Status),
		task.Prompt,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// GetTask retrieves a task by ID
func (s *Store) GetTask(id string) (*domain.Task, error) {
	row := s.db.QueryRow(`
		SELECT id, project, source, category, title, description, file, line, impact, confidence, risk, duration, score, status, prompt, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	return scanTask(row)
}

// TaskExists reports whether a task with the same project and title is
// already stored, regardless of status
func (s *Store) TaskExists(project, title string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE project = ? AND title = ?`, project, title).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListOptions specifies filters for listing tasks
type ListOptions struct {
	Status   domain.TaskStatus
	Project  string
	MaxRisk  int
	MinScore float64
	Limit    int
}

// ListTasks returns tasks matching the given options, best score first
func (s *Store) ListTasks(opts ListOptions) ([]*domain.Task, error) {
	query := `SELECT id, project, source, category, title, description, file, line, impact, confidence, risk, duration, score, status, prompt, created_at, updated_at FROM tasks WHERE 1=1`
	var args []interface{}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Project != "" {
		query += " AND project = ?"
		args = append(args, opts.Project)
	}
	if opts.MaxRisk > 0 {
		query += " AND risk <= ?"
		args = append(args, opts.MaxRisk)
	}
	if opts.MinScore > 0 {
		query += " AND score >= ?"
		args = append(args, opts.MinScore)
	}

	query += " ORDER BY score DESC, created_at ASC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// QueuedTasks returns all queued tasks as values, best score first
func (s *Store) QueuedTasks() ([]domain.Task, error) {
	ptrs, err := s.ListTasks(ListOptions{Status: domain.StatusQueued})
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(ptrs))
	for _, p := range ptrs {
		tasks = append(tasks, *p)
	}
	return tasks, nil
}

// UpdateTaskStatus updates a task's status
func (s *Store) UpdateTaskStatus(id string, status domain.TaskStatus) error {
	_, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id)
	return err
}

func scanTask(row *sql.Row) (*domain.Task, error) {
	var task domain.Task
	var status string
	var source, category, description, file, prompt sql.NullString

	err := row.Scan(&task.ID, &task.Project, &source, &category, &task.Title, &description, &file, &task.Line,
		&task.Impact, &task.Confidence, &task.Risk, &task.Duration, &task.Score, &status, &prompt,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Source = source.String
	task.Category = category.String
	task.Description = description.String
	task.File = file.String
	task.Prompt = prompt.String

	return &task, nil
}

func scanTaskRows(rows *sql.Rows) (*domain.Task, error) {
	var task domain.Task
	var status string
	var source, category, description, file, prompt sql.NullString

	err := rows.Scan(&task.ID, &task.Project, &source, &category, &task.Title, &description, &file, &task.Line,
		&task.Impact, &task.Confidence, &task.Risk, &task.Duration, &task.Score, &status, &prompt,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Source = source.String
	task.Category = category.String
	task.Description = description.String
	task.File = file.String
	task.Prompt = prompt.String

	return &task, nil
}
