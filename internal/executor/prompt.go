package executor

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

const promptTemplate = `You are running an unattended overnight maintenance task. Nobody is
watching, so stay strictly inside the task scope.

Task: %s
%s
Instructions:
1. Make the smallest change that completes the task
2. Run the project's tests for the touched code if they finish quickly
3. Do not refactor beyond the task scope
4. Do not modify unrelated files

Do not ask for clarification. If the task cannot be completed safely,
stop without changing anything and explain why.
`

// commitTrailer marks every commit night mode creates so operators can
// tell automated commits from their own. Downstream tooling matches on
// this exact string.
const commitTrailer = "Automated-by: nightmode"

// categoryGuidance holds one extra instruction per discovery category.
// Categories without an entry get no extra line.
var categoryGuidance = map[string]string{
	"cleanup":    "Only remove code you can prove is unused.",
	"refactor":   "Preserve the public API and observable behavior exactly.",
	"test":       "Test behavior, not implementation, and keep the test deterministic.",
	"docs":       "Follow Go documentation conventions and skip the obvious.",
	"lint":       "Fix the reported finding without changing behavior.",
	"dependency": "Touch only the named dependency and keep lockfiles consistent.",
}

// BuildPrompt constructs the agent prompt for a task that carries none
func BuildPrompt(task *domain.Task) string {
	var details strings.Builder
	if task.Description != "" {
		details.WriteString("\n" + task.Description + "\n")
	}
	if task.File != "" {
		loc := task.File
		if task.Line > 0 {
			loc = fmt.Sprintf("%s:%d", task.File, task.Line)
		}
		details.WriteString(fmt.Sprintf("\nLocation: %s\n", loc))
	}
	if task.Category != "" {
		details.WriteString(fmt.Sprintf("Category: %s\n", task.Category))
		if guidance, ok := categoryGuidance[task.Category]; ok {
			details.WriteString(guidance + "\n")
		}
	}

	return fmt.Sprintf(promptTemplate, task.Title, details.String())
}

// BuildCommitMessage creates the commit message for a completed task,
// ending in the fixed attribution trailer
func BuildCommitMessage(task *domain.Task) string {
	msg := fmt.Sprintf("nightmode: %s", task.Title)
	if task.Description != "" {
		msg += "\n\n" + task.Description
	}
	return msg + "\n\n" + commitTrailer
}
