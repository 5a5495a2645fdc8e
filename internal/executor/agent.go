package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// Exit codes recorded for process-level failures, following shell
// convention: 124 for a run killed by timeout, 127 for a process that
// never started.
const (
	ExitTimeout      = 124
	ExitSpawnFailure = 127
)

// DefaultAgentTimeout bounds the wall-clock time of a single agent call
const DefaultAgentTimeout = 5 * time.Minute

// DefaultMaxCapturedOutput caps stored stdout and stderr per execution
const DefaultMaxCapturedOutput = 64 * 1024

// AgentResult is the structured outcome of one agent invocation
type AgentResult struct {
	ExitCode         int
	Stdout           string
	Stderr           string
	DurationMs       int64
	CostUsdCents     int
	TotalTokens      int
	PromptTokens     int
	CompletionTokens int
	Model            string
}

// AgentRunner executes one task prompt against an external coding agent.
// Implementations return a result even for failed runs; a non-nil error
// means the runner itself could not produce a result at all.
type AgentRunner interface {
	Run(ctx context.Context, task *domain.Task) (*AgentResult, error)
}

// ClaudeRunner shells out to the Claude Code CLI in non-interactive mode
type ClaudeRunner struct {
	Binary    string
	Model     string
	Timeout   time.Duration
	MaxOutput int
}

// NewClaudeRunner creates a runner with defaults filled in
func NewClaudeRunner(binary, model string, timeout time.Duration) *ClaudeRunner {
	if binary == "" {
		binary = "claude"
	}
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	return &ClaudeRunner{
		Binary:    binary,
		Model:     model,
		Timeout:   timeout,
		MaxOutput: DefaultMaxCapturedOutput,
	}
}

// Run invokes the CLI for one task and maps the outcome onto exit-code
// semantics: the subprocess exit code on a normal finish, 124 when the
// timeout killed it, 127 when it could not be started.
func (r *ClaudeRunner) Run(ctx context.Context, task *domain.Task) (*AgentResult, error) {
	prompt := task.Prompt
	if prompt == "" {
		prompt = BuildPrompt(task)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := []string{
		"--print",                        // Non-interactive mode
		"--dangerously-skip-permissions", // Skip permission prompts
		"--output-format", "json",        // Single JSON result payload
	}
	if r.Model != "" {
		args = append(args, "--model", r.Model)
	}
	args = append(args, "-p", prompt)

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = task.Project

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return spawnFailure(err), nil
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return spawnFailure(err), nil
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return spawnFailure(err), nil
	}

	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxCapturedOutput
	}
	outBuf := newCappedBuffer(maxOutput)
	errBuf := newCappedBuffer(maxOutput)

	var usage claudeResultMessage
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		// Increase buffer size for long JSON lines
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if msg, ok := parseResultLine(line); ok {
				usage = msg
			}
			outBuf.WriteLine(line)
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			errBuf.WriteLine(scanner.Text())
		}
	}()
	wg.Wait()

	waitErr := cmd.Wait()

	result := &AgentResult{
		Stdout:     outBuf.String(),
		Stderr:     errBuf.String(),
		DurationMs: time.Since(start).Milliseconds(),
		Model:      r.Model,
	}

	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case ctx.Err() == context.DeadlineExceeded:
		result.ExitCode = ExitTimeout
		result.Stderr = appendLine(result.Stderr, "agent timed out after "+r.Timeout.String())
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = ExitSpawnFailure
			result.Stderr = appendLine(result.Stderr, waitErr.Error())
		}
	}

	result.CostUsdCents = int(math.Round((usage.CostUSD + usage.TotalCostUSD) * 100))
	result.PromptTokens = usage.Usage.InputTokens
	result.CompletionTokens = usage.Usage.OutputTokens
	result.TotalTokens = usage.Usage.InputTokens + usage.Usage.OutputTokens

	return result, nil
}

func spawnFailure(err error) *AgentResult {
	return &AgentResult{
		ExitCode: ExitSpawnFailure,
		Stderr:   err.Error(),
	}
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}

// claudeResultMessage is the final result payload from the Claude Code
// CLI. Older releases report cost_usd, newer ones total_cost_usd; at
// most one of the two is ever set.
type claudeResultMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
}

// parseResultLine tries to parse one output line as the result payload.
// Unparseable lines are normal (tool chatter, partial output) and are
// simply skipped; a run whose result never parses keeps zero usage.
func parseResultLine(line string) (claudeResultMessage, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return claudeResultMessage{}, false
	}
	var msg claudeResultMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return claudeResultMessage{}, false
	}
	if msg.Type != "result" {
		return claudeResultMessage{}, false
	}
	return msg, true
}

// cappedBuffer accumulates whole lines up to a byte budget and drops
// the rest, bounding what an execution record can store
type cappedBuffer struct {
	b   strings.Builder
	max int
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (c *cappedBuffer) WriteLine(line string) {
	if c.b.Len() >= c.max {
		return
	}
	remaining := c.max - c.b.Len()
	if len(line)+1 > remaining {
		c.b.WriteString(line[:remaining])
		return
	}
	c.b.WriteString(line)
	c.b.WriteByte('\n')
}

func (c *cappedBuffer) String() string {
	return strings.TrimSuffix(c.b.String(), "\n")
}
