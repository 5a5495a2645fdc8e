package executor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// maxStderrExcerpt caps the stderr excerpt shown per failed task.
const maxStderrExcerpt = 160

// GenerateMorningReport renders the overnight outcome as plain text.
// The section labels and field order are relied on by notification
// consumers, so keep them stable.
func (e *Executor) GenerateMorningReport(results []TaskResult, safetyCommits []domain.SafetyCommit) string {
	var b strings.Builder

	title := fmt.Sprintf("Night Mode Report %s", e.now().Format("2006-01-02"))
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	completed := 0
	failed := 0
	var costCents, totalMs int64
	var tokens int64
	for _, r := range results {
		if r.Success {
			completed++
		} else {
			failed++
		}
		costCents += int64(r.Execution.CostUsdCents)
		tokens += int64(r.Execution.TotalTokens)
		totalMs += r.Execution.DurationMs
	}

	b.WriteString("Summary\n")
	fmt.Fprintf(&b, "  Attempted: %d\n", len(results))
	fmt.Fprintf(&b, "  Completed: %d\n", completed)
	fmt.Fprintf(&b, "  Failed:    %d\n", failed)
	fmt.Fprintf(&b, "  Cost:      $%.2f\n", float64(costCents)/100)
	fmt.Fprintf(&b, "  Tokens:    %s\n", humanize.Comma(tokens))
	duration := (time.Duration(totalMs) * time.Millisecond).Round(time.Second)
	fmt.Fprintf(&b, "  Duration:  %s\n", duration)

	if len(safetyCommits) > 0 {
		b.WriteString("\nSafety commits\n")
		for _, sc := range safetyCommits {
			if sc.Skipped {
				fmt.Fprintf(&b, "  %s: skipped (%s)\n", sc.Project, sc.Reason)
			} else {
				fmt.Fprintf(&b, "  %s: %s on %s\n", sc.Project, shortHash(sc.CommitHash), sc.Branch)
			}
		}
	}

	if completed > 0 {
		b.WriteString("\nCompleted\n")
		for _, r := range results {
			if !r.Success {
				continue
			}
			line := fmt.Sprintf("  + [%s] %s", filepath.Base(r.Task.Project), r.Task.Title)
			if r.Execution.CommitHash != "" {
				line += fmt.Sprintf(" (commit %s)", shortHash(r.Execution.CommitHash))
			}
			fmt.Fprintf(&b, "%s\n", line)
			fmt.Fprintf(&b, "      $%.2f, %s tokens\n",
				float64(r.Execution.CostUsdCents)/100,
				humanize.Comma(int64(r.Execution.TotalTokens)))
		}
	}

	if failed > 0 {
		b.WriteString("\nFailed\n")
		for _, r := range results {
			if r.Success {
				continue
			}
			fmt.Fprintf(&b, "  - [%s] %s (exit %d)\n",
				filepath.Base(r.Task.Project), r.Task.Title, r.Execution.ExitCode)
			if excerpt := stderrExcerpt(r.Error); excerpt != "" {
				fmt.Fprintf(&b, "      %s\n", excerpt)
			}
		}
	}

	if len(results) == 0 {
		b.WriteString("\nNo tasks were attempted.\n")
		return b.String()
	}

	b.WriteString("\nReview\n")
	branch := results[0].Execution.Branch
	if branch != "" {
		fmt.Fprintf(&b, "  Branch %s\n", branch)
	}
	for _, project := range touchedProjects(results) {
		fmt.Fprintf(&b, "  cd %s && git log %s --oneline\n", project, branch)
	}

	return b.String()
}

func touchedProjects(results []TaskResult) []string {
	seen := make(map[string]bool)
	projects := make([]string, 0)
	for _, r := range results {
		if seen[r.Task.Project] {
			continue
		}
		seen[r.Task.Project] = true
		projects = append(projects, r.Task.Project)
	}
	return projects
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func stderrExcerpt(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxStderrExcerpt {
			return line[:maxStderrExcerpt] + "..."
		}
		return line
	}
	return ""
}
