// Package backlog reads discovered-task files into the store. Discovery
// runs write one YAML file per sweep; importing is idempotent, so the
// same file can be picked up again without creating duplicates.
package backlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// File is the on-disk document produced by a discovery sweep.
type File struct {
	Project string      `yaml:"project"`
	Source  string      `yaml:"source"`
	Tasks   []TaskEntry `yaml:"tasks"`
}

// TaskEntry is one discovered task. Project falls back to the
// file-level project when empty.
type TaskEntry struct {
	Project     string `yaml:"project,omitempty"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Category    string `yaml:"category,omitempty"`
	File        string `yaml:"file,omitempty"`
	Line        int    `yaml:"line,omitempty"`
	Impact      int    `yaml:"impact"`
	Confidence  int    `yaml:"confidence"`
	Risk        int    `yaml:"risk"`
	Duration    int    `yaml:"duration"`
	Prompt      string `yaml:"prompt,omitempty"`
}

// Store is the slice of persistence the importer needs.
type Store interface {
	InsertTask(task *domain.Task) error
	TaskExists(project, title string) (bool, error)
}

// ImportResult sums up one import run.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

func (r *ImportResult) merge(other *ImportResult) {
	r.Imported += other.Imported
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

type Importer struct {
	store Store
}

func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// ImportFile reads one backlog file and inserts every valid, previously
// unseen task as queued. Invalid entries are reported in the result and
// never abort the rest of the file.
func (i *Importer) ImportFile(path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading backlog file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	source := file.Source
	if source == "" {
		source = "backlog"
	}

	result := &ImportResult{}
	for idx, entry := range file.Tasks {
		task, err := entry.toTask(file.Project, source)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s task %d: %v", filepath.Base(path), idx+1, err))
			continue
		}

		exists, err := i.store.TaskExists(task.Project, task.Title)
		if err != nil {
			return nil, fmt.Errorf("checking for duplicate: %w", err)
		}
		if exists {
			result.Skipped++
			continue
		}

		if err := i.store.InsertTask(task); err != nil {
			return nil, fmt.Errorf("inserting task %q: %w", task.Title, err)
		}
		result.Imported++
	}

	log.Printf("[backlog] %s: %d imported, %d duplicates, %d invalid",
		filepath.Base(path), result.Imported, result.Skipped, len(result.Errors))
	return result, nil
}

// ImportDir imports every .yaml and .yml file in the directory, in
// name order.
func (i *Importer) ImportDir(dir string) (*ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading backlog directory: %w", err)
	}

	paths := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isBacklogFile(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	result := &ImportResult{}
	for _, path := range paths {
		fileResult, err := i.ImportFile(path)
		if err != nil {
			return nil, err
		}
		result.merge(fileResult)
	}
	return result, nil
}

func isBacklogFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func (e TaskEntry) toTask(defaultProject, source string) (*domain.Task, error) {
	project := e.Project
	if project == "" {
		project = defaultProject
	}
	if project == "" {
		return nil, fmt.Errorf("no project set")
	}
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("no title set")
	}

	task := &domain.Task{
		Project:     project,
		Source:      source,
		Category:    e.Category,
		Title:       strings.TrimSpace(e.Title),
		Description: e.Description,
		File:        e.File,
		Line:        e.Line,
		Impact:      e.Impact,
		Confidence:  e.Confidence,
		Risk:        e.Risk,
		Duration:    e.Duration,
		Status:      domain.StatusQueued,
		Prompt:      e.Prompt,
	}
	if err := task.ValidateRatings(); err != nil {
		return nil, err
	}
	task.Score = domain.ComputeScore(task.Impact, task.Confidence, task.Risk, task.Duration)
	return task, nil
}
