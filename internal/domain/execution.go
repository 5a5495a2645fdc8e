package domain

import "time"

// Execution is the immutable record of one task run against the agent.
// It is created exactly once per attempt and never mutated afterwards.
type Execution struct {
	ID               string
	TaskID           string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUsdCents     int
	DurationMs       int64
	ExitCode         int
	Stdout           string
	Stderr           string
	Branch           string
	CommitHash       string
	StartedAt        time.Time
	CompletedAt      time.Time
}

// SafetyCommit records the pre-flight commit taken for a project before
// a batch is allowed to mutate its working tree.
type SafetyCommit struct {
	Project    string
	Branch     string
	CommitHash string
	Skipped    bool
	Reason     string
}
