package executor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func setupGitRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init", "-b", "main"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
	}

	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s", args, out)
		}
	}

	// Create initial commit
	readme := filepath.Join(dir, "README.md")
	os.WriteFile(readme, []byte("# Test"), 0644)

	cmd := exec.Command("git", "add", ".")
	cmd.Dir = dir
	cmd.Run()

	cmd = exec.Command("git", "commit", "-m", "Initial commit")
	cmd.Dir = dir
	cmd.Run()

	return dir
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %s", args, out)
	}
	return strings.TrimSpace(string(out))
}

func currentBranch(t *testing.T, dir string) string {
	t.Helper()
	return gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

func TestEnsureBranchCreatesAndRestores(t *testing.T) {
	dir := setupGitRepo(t)

	if err := ensureBranch(dir, "nightmode/2025-11-03"); err != nil {
		t.Fatal(err)
	}

	if !branchExists(dir, "nightmode/2025-11-03") {
		t.Error("night branch not created")
	}
	if got := currentBranch(t, dir); got != "main" {
		t.Errorf("current branch = %q, want main", got)
	}

	// Second call is a no-op
	if err := ensureBranch(dir, "nightmode/2025-11-03"); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureBranchNonRepo(t *testing.T) {
	requireGit(t)
	if err := ensureBranch(t.TempDir(), "nightmode/2025-11-03"); err != nil {
		t.Errorf("expected no-op for non-repository, got %v", err)
	}
}

func TestCommitChangesMovesWorkToBranch(t *testing.T) {
	dir := setupGitRepo(t)
	branch := "nightmode/2025-11-03"
	if err := ensureBranch(dir, branch); err != nil {
		t.Fatal(err)
	}

	// Simulate agent output left in the working tree
	os.WriteFile(filepath.Join(dir, "fix.go"), []byte("package fix\n"), 0644)

	task := &domain.Task{Title: "Remove unused import"}
	hash := commitChanges(dir, branch, task)
	if hash == "" {
		t.Fatal("expected a commit hash")
	}

	if got := gitOutput(t, dir, "rev-parse", branch); got != hash {
		t.Errorf("branch head = %s, want %s", got, hash)
	}
	if got := currentBranch(t, dir); got != "main" {
		t.Errorf("current branch = %q, want main", got)
	}
	if status := gitOutput(t, dir, "status", "--porcelain"); status != "" {
		t.Errorf("working tree not clean after commit: %q", status)
	}

	msg := gitOutput(t, dir, "log", "-1", "--format=%B", branch)
	if !strings.Contains(msg, "nightmode: Remove unused import") {
		t.Errorf("commit message missing title: %q", msg)
	}
	if !strings.Contains(msg, "Automated-by: nightmode") {
		t.Errorf("commit message missing trailer: %q", msg)
	}
}

func TestCommitChangesNothingToCommit(t *testing.T) {
	dir := setupGitRepo(t)
	branch := "nightmode/2025-11-03"
	if err := ensureBranch(dir, branch); err != nil {
		t.Fatal(err)
	}

	before := gitOutput(t, dir, "rev-parse", branch)

	hash := commitChanges(dir, branch, &domain.Task{Title: "No-op task"})
	if hash != "" {
		t.Errorf("expected empty hash for clean tree, got %q", hash)
	}
	if got := currentBranch(t, dir); got != "main" {
		t.Errorf("current branch = %q, want main", got)
	}
	if after := gitOutput(t, dir, "rev-parse", branch); after != before {
		t.Error("branch head moved despite empty tree")
	}
}

func TestCommitChangesNonRepo(t *testing.T) {
	requireGit(t)
	if hash := commitChanges(t.TempDir(), "nightmode/2025-11-03", &domain.Task{}); hash != "" {
		t.Errorf("expected empty hash outside a repository, got %q", hash)
	}
}

func TestSafetyCommitCapturesOperatorWork(t *testing.T) {
	dir := setupGitRepo(t)
	os.WriteFile(filepath.Join(dir, "wip.go"), []byte("package wip\n"), 0644)

	now := func() time.Time {
		return time.Date(2025, 11, 3, 23, 0, 0, 0, time.UTC)
	}
	e := New(nil, nil, now)

	sc := e.SafetyCommit(dir)
	if sc.Skipped {
		t.Fatalf("unexpected skip: %s", sc.Reason)
	}
	if sc.Branch != "nightmode/safety-2025-11-03-230000" {
		t.Errorf("branch = %q", sc.Branch)
	}
	if sc.CommitHash == "" {
		t.Error("expected a commit hash")
	}

	if got := currentBranch(t, dir); got != "main" {
		t.Errorf("current branch = %q, want main", got)
	}
	if status := gitOutput(t, dir, "status", "--porcelain"); status != "" {
		t.Errorf("working tree not clean after safety commit: %q", status)
	}
	if got := gitOutput(t, dir, "rev-parse", sc.Branch); got != sc.CommitHash {
		t.Errorf("safety branch head = %s, want %s", got, sc.CommitHash)
	}
}

func TestSafetyCommitCleanTree(t *testing.T) {
	dir := setupGitRepo(t)
	e := New(nil, nil, nil)

	sc := e.SafetyCommit(dir)
	if !sc.Skipped {
		t.Fatal("expected skip for clean tree")
	}
	if sc.Reason != "working tree clean" {
		t.Errorf("reason = %q", sc.Reason)
	}
}

func TestSafetyCommitNonRepo(t *testing.T) {
	requireGit(t)
	e := New(nil, nil, nil)

	sc := e.SafetyCommit(t.TempDir())
	if !sc.Skipped {
		t.Fatal("expected skip outside a repository")
	}
	if sc.Reason != "not a git repository" {
		t.Errorf("reason = %q", sc.Reason)
	}
}
