package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

func TestBuildPrompt(t *testing.T) {
	task := &domain.Task{
		Title:       "Remove unused import",
		Description: "handlers.go imports fmt but never uses it",
		Category:    "cleanup",
		File:        "internal/api/handlers.go",
		Line:        12,
	}

	prompt := BuildPrompt(task)

	if !strings.Contains(prompt, "Remove unused import") {
		t.Error("prompt should contain task title")
	}
	if !strings.Contains(prompt, "handlers.go imports fmt") {
		t.Error("prompt should contain task description")
	}
	if !strings.Contains(prompt, "internal/api/handlers.go:12") {
		t.Error("prompt should contain file location")
	}
	if !strings.Contains(prompt, "cleanup") {
		t.Error("prompt should contain category")
	}
	if !strings.Contains(prompt, "Only remove code you can prove is unused.") {
		t.Error("prompt should contain category guidance")
	}
}

func TestBuildPromptUnknownCategory(t *testing.T) {
	task := &domain.Task{Title: "Rotate the build badge", Category: "chore"}

	prompt := BuildPrompt(task)

	if !strings.Contains(prompt, "Category: chore") {
		t.Error("prompt should contain category")
	}
	if strings.Contains(prompt, "prove is unused") {
		t.Error("unknown category should get no guidance line")
	}
}

func TestBuildCommitMessage(t *testing.T) {
	task := &domain.Task{
		Title:       "Remove unused import",
		Description: "handlers.go imports fmt but never uses it",
	}

	msg := BuildCommitMessage(task)

	if !strings.HasPrefix(msg, "nightmode: Remove unused import") {
		t.Errorf("unexpected subject line: %q", msg)
	}
	if !strings.Contains(msg, "handlers.go imports fmt") {
		t.Error("commit message should contain description")
	}
	if !strings.HasSuffix(msg, "Automated-by: nightmode") {
		t.Errorf("commit message should end with trailer: %q", msg)
	}
}

func TestParseResultLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"result with usage", `{"type":"result","cost_usd":0.37,"usage":{"input_tokens":4200,"output_tokens":1800}}`, true},
		{"result with total cost", `{"type":"result","total_cost_usd":1.25}`, true},
		{"surrounding whitespace", `  {"type":"result"}  `, true},
		{"assistant message", `{"type":"assistant","message":"working on it"}`, false},
		{"tool chatter", `reading internal/api/handlers.go`, false},
		{"broken json", `{"type":"result"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseResultLine(tt.line)
			if ok != tt.ok {
				t.Errorf("parseResultLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
		})
	}

	msg, ok := parseResultLine(`{"type":"result","cost_usd":0.37,"usage":{"input_tokens":4200,"output_tokens":1800}}`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if msg.CostUSD != 0.37 {
		t.Errorf("CostUSD = %v", msg.CostUSD)
	}
	if msg.Usage.InputTokens != 4200 || msg.Usage.OutputTokens != 1800 {
		t.Errorf("usage = %+v", msg.Usage)
	}
}

func TestCappedBuffer(t *testing.T) {
	buf := newCappedBuffer(16)
	buf.WriteLine("hello")
	buf.WriteLine("world")
	buf.WriteLine("again")
	buf.WriteLine("dropped")

	if got := buf.String(); got != "hello\nworld\nagai" {
		t.Errorf("String() = %q", got)
	}

	small := newCappedBuffer(5)
	small.WriteLine("abcdefghij")
	if got := small.String(); got != "abcde" {
		t.Errorf("oversize line String() = %q", got)
	}
}

func writeFakeAgent(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake agent scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClaudeRunnerParsesUsage(t *testing.T) {
	bin := writeFakeAgent(t, `echo '{"type":"result","cost_usd":0.37,"usage":{"input_tokens":4200,"output_tokens":1800}}'
echo 'all done' >&2
exit 0
`)
	runner := NewClaudeRunner(bin, "", 30*time.Second)
	task := &domain.Task{Project: t.TempDir(), Prompt: "noop"}

	res, err := runner.Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}

	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, stderr %q", res.ExitCode, res.Stderr)
	}
	if res.CostUsdCents != 37 {
		t.Errorf("cost = %d cents, want 37", res.CostUsdCents)
	}
	if res.PromptTokens != 4200 || res.CompletionTokens != 1800 || res.TotalTokens != 6000 {
		t.Errorf("tokens = %d/%d/%d", res.PromptTokens, res.CompletionTokens, res.TotalTokens)
	}
	if !strings.Contains(res.Stdout, `"type":"result"`) {
		t.Errorf("stdout not captured: %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "all done") {
		t.Errorf("stderr not captured: %q", res.Stderr)
	}
}

func TestClaudeRunnerNonzeroExit(t *testing.T) {
	bin := writeFakeAgent(t, `echo 'cannot apply change safely' >&2
exit 3
`)
	runner := NewClaudeRunner(bin, "", 30*time.Second)
	task := &domain.Task{Project: t.TempDir(), Prompt: "noop"}

	res, err := runner.Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}

	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "cannot apply change safely") {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestClaudeRunnerTimeout(t *testing.T) {
	bin := writeFakeAgent(t, `exec sleep 10
`)
	runner := NewClaudeRunner(bin, "", 30*time.Second)
	runner.Timeout = 100 * time.Millisecond
	task := &domain.Task{Project: t.TempDir(), Prompt: "noop"}

	res, err := runner.Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}

	if res.ExitCode != ExitTimeout {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitTimeout)
	}
	if !strings.Contains(res.Stderr, "timed out") {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestClaudeRunnerSpawnFailure(t *testing.T) {
	runner := NewClaudeRunner("/nonexistent/claude-binary", "", time.Second)
	task := &domain.Task{Project: t.TempDir(), Prompt: "noop"}

	res, err := runner.Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}

	if res.ExitCode != ExitSpawnFailure {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitSpawnFailure)
	}
	if res.Stderr == "" {
		t.Error("expected spawn error in stderr")
	}
}
