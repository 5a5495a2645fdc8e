package taskstore

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    project TEXT NOT NULL,
    source TEXT,
    category TEXT,
    title TEXT NOT NULL,
    description TEXT,
    file TEXT,
    line INTEGER,
    impact INTEGER NOT NULL,
    confidence INTEGER NOT NULL,
    risk INTEGER NOT NULL,
    duration INTEGER NOT NULL,
    score REAL NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'queued',
    prompt TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project);
CREATE INDEX IF NOT EXISTS idx_tasks_score ON tasks(score);

CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL REFERENCES tasks(id),
    model TEXT,
    prompt_tokens INTEGER DEFAULT 0,
    completion_tokens INTEGER DEFAULT 0,
    total_tokens INTEGER DEFAULT 0,
    cost_usd_cents INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    exit_code INTEGER DEFAULT 0,
    stdout TEXT,
    stderr TEXT,
    branch TEXT,
    commit_hash TEXT,
    started_at TIMESTAMP,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_executions_task_id ON executions(task_id);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    counterparty_id TEXT NOT NULL,
    entry_type TEXT NOT NULL,
    amount INTEGER NOT NULL,
    currency TEXT NOT NULL,
    description TEXT,
    task_id TEXT,
    execution_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ledger_account_created ON ledger_entries(account_id, created_at);

CREATE TABLE IF NOT EXISTS credit_snapshots (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    token_balance INTEGER DEFAULT 0,
    usd_cents_balance INTEGER DEFAULT 0,
    window_reset_at TIMESTAMP,
    captured_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_account_captured ON credit_snapshots(account_id, captured_at);
`
