//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binaryPath returns the path to the built CLI binary
func binaryPath(t *testing.T) string {
	t.Helper()
	// Look for the binary in common locations
	paths := []string{
		"../nightmode",
		"./nightmode",
		filepath.Join(os.Getenv("GOPATH"), "bin", "nightmode"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}

	// Try to build it
	t.Log("Binary not found, building...")
	cmd := exec.Command("go", "build", "-o", "../nightmode", "../cmd/nightmode")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}

	abs, _ := filepath.Abs("../nightmode")
	return abs
}

// createTestConfig creates a temporary config file for testing
func createTestConfig(t *testing.T, backlogDir, dbPath string) string {
	t.Helper()
	configPath := TempConfigPath(t)

	config := `[general]
database_path = "` + dbPath + `"
backlog_dir = "` + backlogDir + `"
account_id = "self"

[notifications]
desktop = false
`

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	return configPath
}

// importFixtures runs the import command and fails the test on error
func importFixtures(t *testing.T, binary, configPath string) string {
	t.Helper()
	cmd := exec.Command(binary, "import", "--config", configPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("import command failed: %v\n%s", err, out)
	}
	return string(out)
}

// TestCLI_Import tests the import command against the sample backlog
func TestCLI_Import(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))

	output := importFixtures(t, binary, configPath)

	if !strings.Contains(output, "Imported 5 tasks") {
		t.Errorf("Expected 'Imported 5 tasks' in output, got: %s", output)
	}

	if !strings.Contains(output, "0 duplicates skipped") {
		t.Errorf("Expected '0 duplicates skipped' in output, got: %s", output)
	}
}

// TestCLI_ImportTwiceSkipsDuplicates tests that re-importing is a no-op
func TestCLI_ImportTwiceSkipsDuplicates(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))

	importFixtures(t, binary, configPath)
	output := importFixtures(t, binary, configPath)

	if !strings.Contains(output, "Imported 0 tasks") {
		t.Errorf("Expected 'Imported 0 tasks' on re-import, got: %s", output)
	}

	if !strings.Contains(output, "5 duplicates skipped") {
		t.Errorf("Expected '5 duplicates skipped' on re-import, got: %s", output)
	}
}

// TestCLI_TasksList tests the tasks list command
func TestCLI_TasksList(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))
	importFixtures(t, binary, configPath)

	cmd := exec.Command(binary, "tasks", "list", "--config", configPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("tasks list command failed: %v\n%s", err, out)
	}

	output := string(out)

	// Verify header
	for _, col := range []string{"ID", "SCORE", "RISK", "TITLE"} {
		if !strings.Contains(output, col) {
			t.Errorf("Expected column %s in output, got: %s", col, output)
		}
	}

	// Verify tasks from both sweep files made it in
	expectedTitles := []string{
		"Remove unused imports in handlers",
		"Wrap database errors in the client",
		"Fix flaky login redirect test",
	}
	for _, title := range expectedTitles {
		if !strings.Contains(output, title) {
			t.Errorf("Expected task %q in output, got: %s", title, output)
		}
	}
}

// TestCLI_TasksListWithProjectFilter tests the tasks list command with a project filter
func TestCLI_TasksListWithProjectFilter(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))
	importFixtures(t, binary, configPath)

	cmd := exec.Command(binary, "tasks", "list",
		"--project", "/home/dev/projects/api", "--config", configPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("tasks list command failed: %v\n%s", err, out)
	}

	output := string(out)

	// Should contain api tasks
	if !strings.Contains(output, "Wrap database errors in the client") {
		t.Errorf("Expected api task in output, got: %s", output)
	}

	// Should NOT contain web tasks
	if strings.Contains(output, "Fix flaky login redirect test") {
		t.Errorf("Did not expect web task in output, got: %s", output)
	}
}

// TestCLI_TasksListWithRiskFilter tests the tasks list command with a risk ceiling
func TestCLI_TasksListWithRiskFilter(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))
	importFixtures(t, binary, configPath)

	cmd := exec.Command(binary, "tasks", "list", "--max-risk", "3", "--config", configPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("tasks list command failed: %v\n%s", err, out)
	}

	output := string(out)

	// The risk 4 dependency bump stays hidden below the ceiling
	if strings.Contains(output, "Migrate deprecated router middleware") {
		t.Errorf("Did not expect risk 4 task in output, got: %s", output)
	}

	if !strings.Contains(output, "Remove unused imports in handlers") {
		t.Errorf("Expected risk 1 task in output, got: %s", output)
	}
}

// TestCLI_Plan tests the plan command with an explicit budget override
func TestCLI_Plan(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))
	importFixtures(t, binary, configPath)

	cmd := exec.Command(binary, "plan",
		"--remaining-cents", "2000", "--reset-minutes", "600", "--config", configPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("plan command failed: %v\n%s", err, out)
	}

	output := string(out)

	// 75% of $20.00
	if !strings.Contains(output, "$15.00 (75% of remaining)") {
		t.Errorf("Expected batch cap in output, got: %s", output)
	}

	if !strings.Contains(output, "5 of 5 queued") {
		t.Errorf("Expected affordability count in output, got: %s", output)
	}

	// One of the five sits above the risk ceiling
	if !strings.Contains(output, "Selected 4 tasks") {
		t.Errorf("Expected 'Selected 4 tasks' in output, got: %s", output)
	}

	if !strings.Contains(output, "estimated 12 min") {
		t.Errorf("Expected duration estimate in output, got: %s", output)
	}

	if strings.Contains(output, "Migrate deprecated router middleware") {
		t.Errorf("Did not expect risk 4 task in plan, got: %s", output)
	}
}

// TestCLI_PlanWithoutBudget tests the error hint when no snapshot exists
func TestCLI_PlanWithoutBudget(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))
	importFixtures(t, binary, configPath)

	cmd := exec.Command(binary, "plan", "--config", configPath)
	out, err := cmd.CombinedOutput()

	// Should return error
	if err == nil {
		t.Error("Expected error when no snapshot exists")
	}

	output := string(out)
	if !strings.Contains(output, "snapshot") {
		t.Errorf("Expected snapshot hint in output, got: %s", output)
	}
}

// TestCLI_SnapshotAndStatus tests recording a snapshot and reading it back
func TestCLI_SnapshotAndStatus(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))
	importFixtures(t, binary, configPath)

	takeCmd := exec.Command(binary, "snapshot", "take", "--usd-cents", "2000", "--config", configPath)
	out, err := takeCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("snapshot take failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Snapshot: $20.00 spendable") {
		t.Errorf("Expected snapshot confirmation, got: %s", out)
	}

	showCmd := exec.Command(binary, "snapshot", "show", "--config", configPath)
	out, err = showCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("snapshot show failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "$20.00") {
		t.Errorf("Expected balance in snapshot show, got: %s", out)
	}

	statusCmd := exec.Command(binary, "status", "--config", configPath)
	out, err = statusCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}

	output := string(out)
	if !strings.Contains(output, "Tasks: 5 total | 5 queued") {
		t.Errorf("Expected task counts in status, got: %s", output)
	}
	if !strings.Contains(output, "Budget: $20.00 remaining") {
		t.Errorf("Expected budget line in status, got: %s", output)
	}
}

// TestCLI_LedgerCreditAndList tests recording and listing ledger entries
func TestCLI_LedgerCreditAndList(t *testing.T) {
	binary := binaryPath(t)
	backlogDir := CopyFixturesToTemp(t)
	configPath := createTestConfig(t, backlogDir, TempDBPath(t))

	creditCmd := exec.Command(binary, "ledger", "credit", "500",
		"--description", "weekly topup", "--config", configPath)
	out, err := creditCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ledger credit failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Credited 500 usd_cents to self") {
		t.Errorf("Expected credit confirmation, got: %s", out)
	}

	listCmd := exec.Command(binary, "ledger", "list", "--config", configPath)
	out, err = listCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ledger list failed: %v\n%s", err, out)
	}

	output := string(out)
	for _, want := range []string{"credit", "$5.00", "subscription", "weekly topup"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in ledger list, got: %s", want, output)
		}
	}
}

// TestCLI_InvalidCommand tests error handling for invalid commands
func TestCLI_InvalidCommand(t *testing.T) {
	binary := binaryPath(t)

	cmd := exec.Command(binary, "invalidcommand")
	out, err := cmd.CombinedOutput()

	// Should return error
	if err == nil {
		t.Error("Expected error for invalid command")
	}

	output := string(out)

	// Should suggest valid commands or show help
	if !strings.Contains(output, "unknown command") && !strings.Contains(output, "Usage") {
		t.Errorf("Expected error message or usage info, got: %s", output)
	}
}
