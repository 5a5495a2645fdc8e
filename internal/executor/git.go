package executor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// gitTimeout bounds every git call; these are local operations and
// should never block a batch for long
const gitTimeout = 10 * time.Second

// safetyBranchFormat names the branch that receives pre-flight commits
// of operator work-in-progress
const safetyBranchFormat = "nightmode/safety-2006-01-02-150405"

func runGit(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func isGitRepo(dir string) bool {
	// .git is a directory in a normal checkout and a file in a
	// worktree; either counts.
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func branchExists(dir, branch string) bool {
	_, err := runGit(dir, "rev-parse", "--verify", branch)
	return err == nil
}

// ensureBranch makes sure the night branch exists in the project,
// creating it from the current HEAD when missing and switching straight
// back so the operator's branch stays checked out. Projects that are
// not git repositories are left alone.
func ensureBranch(project, branch string) error {
	if !isGitRepo(project) {
		return nil
	}
	if branchExists(project, branch) {
		return nil
	}

	if _, err := runGit(project, "checkout", "-b", branch); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}
	if _, err := runGit(project, "checkout", "-"); err != nil {
		return fmt.Errorf("switching back from %s: %w", branch, err)
	}
	return nil
}

// commitChanges moves the agent's file changes onto the night branch.
// An empty working tree abandons the commit quietly. Every git failure
// here is absorbed: the run degrades to "ran but unrecorded" and the
// operator's branch is restored on the way out regardless.
func commitChanges(project, branch string, task *domain.Task) string {
	if !isGitRepo(project) {
		return ""
	}

	if _, err := runGit(project, "checkout", branch); err != nil {
		log.Printf("[executor] checkout %s in %s: %v", branch, project, err)
		return ""
	}
	defer func() {
		if _, err := runGit(project, "checkout", "-"); err != nil {
			log.Printf("[executor] restoring previous branch in %s: %v", project, err)
		}
	}()

	if _, err := runGit(project, "add", "-A"); err != nil {
		log.Printf("[executor] staging changes in %s: %v", project, err)
		return ""
	}

	status, err := runGit(project, "status", "--porcelain")
	if err != nil {
		log.Printf("[executor] checking status in %s: %v", project, err)
		return ""
	}
	if status == "" {
		// Agent ran without changing anything; nothing to record.
		return ""
	}

	if _, err := runGit(project, "commit", "-m", BuildCommitMessage(task)); err != nil {
		log.Printf("[executor] committing in %s: %v", project, err)
		return ""
	}

	hash, err := runGit(project, "rev-parse", "HEAD")
	if err != nil {
		log.Printf("[executor] reading commit hash in %s: %v", project, err)
		return ""
	}
	return hash
}

// SafetyCommit captures any pre-existing uncommitted work onto a
// dedicated timestamped branch before a batch may touch the project.
// The outcome is always reported, never an error: a project that is not
// a repository or has nothing to save yields a skip with its reason.
func (e *Executor) SafetyCommit(project string) domain.SafetyCommit {
	sc := domain.SafetyCommit{Project: project}

	if !isGitRepo(project) {
		sc.Skipped = true
		sc.Reason = "not a git repository"
		return sc
	}

	status, err := runGit(project, "status", "--porcelain")
	if err != nil {
		sc.Skipped = true
		sc.Reason = err.Error()
		return sc
	}
	if status == "" {
		sc.Skipped = true
		sc.Reason = "working tree clean"
		return sc
	}

	branch := e.now().Format(safetyBranchFormat)
	if _, err := runGit(project, "checkout", "-b", branch); err != nil {
		sc.Skipped = true
		sc.Reason = err.Error()
		return sc
	}
	defer func() {
		if _, err := runGit(project, "checkout", "-"); err != nil {
			log.Printf("[executor] restoring branch after safety commit in %s: %v", project, err)
		}
	}()

	if _, err := runGit(project, "add", "-A"); err != nil {
		sc.Skipped = true
		sc.Reason = err.Error()
		return sc
	}
	if _, err := runGit(project, "commit", "-m", "[WIP] nightmode safety commit of operator changes"); err != nil {
		sc.Skipped = true
		sc.Reason = err.Error()
		return sc
	}

	hash, err := runGit(project, "rev-parse", "HEAD")
	if err != nil {
		sc.Skipped = true
		sc.Reason = err.Error()
		return sc
	}

	sc.Branch = branch
	sc.CommitHash = hash
	log.Printf("[executor] safety commit %s on %s in %s", hash, branch, project)
	return sc
}
